package charts

import (
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

func nan() float64 { return math.NaN() }

func sampleRequest() Request {
	return Request{
		XLabels: []string{"2024-01-01", "2024-02-01", "2024-03-01", "2024-04-01"},
		Series: []Series{
			{Name: "math", Values: []float64{90, 95, nan(), 97}},
			{Name: "eng", Values: []float64{80, nan(), 82, 85}, Marker: MarkerSquare},
		},
		Options: Options{Title: "Scores", YAxisLabel: "Score", Annotate: true, RotateXLabels: true, Width: 640, Height: 360},
	}
}

func TestNewPlan_LengthMismatch(t *testing.T) {
	req := Request{XLabels: []string{"a", "b"}, Series: []Series{{Name: "x", Values: []float64{1}}}}
	_, err := NewPlan(req)
	var re *RequestError
	if !errors.As(err, &re) || re.Series != "x" || re.Got != 1 || re.Want != 2 {
		t.Fatalf("expected RequestError got %v", err)
	}
	if _, err := Render(nil, req); !errors.As(err, &re) {
		t.Fatalf("Render should surface RequestError, got %v", err)
	}
}

func TestSegments(t *testing.T) {
	segs := Segments([]float64{1, nan(), 3, 4, nan()})
	if len(segs) != 2 {
		t.Fatalf("segments=%v", segs)
	}
	if segs[0].Start != 0 || len(segs[0].Values) != 1 || segs[1].Start != 2 || len(segs[1].Values) != 2 {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if xs := segs[1].Xs(); xs[0] != 2 || xs[1] != 3 {
		t.Fatalf("xs=%v", xs)
	}
	if Segments([]float64{nan(), nan()}) != nil {
		t.Fatalf("all-missing should have no segments")
	}
}

func TestYRange(t *testing.T) {
	lo, hi := YRange([]Series{{Values: []float64{90, 80, nan(), 95}}})
	if math.Abs(lo-78.5) > 1e-9 || math.Abs(hi-96.5) > 1e-9 {
		t.Fatalf("range=[%v,%v]", lo, hi)
	}
	lo, hi = YRange([]Series{{Values: []float64{5}}})
	if lo != 4 || hi != 6 {
		t.Fatalf("single value pad should be 1: [%v,%v]", lo, hi)
	}
	lo, hi = YRange([]Series{{Values: []float64{nan()}}})
	if lo != 0 || hi != 10 {
		t.Fatalf("all missing should default to [0,10]: [%v,%v]", lo, hi)
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(89.6, ValueFormatRounded); got != "90" {
		t.Fatalf("rounded=%s", got)
	}
	if got := FormatValue(5, ValueFormatInt); got != "5" {
		t.Fatalf("int=%s", got)
	}
}

func TestBackendByName(t *testing.T) {
	if BackendByName("").Name() != "gochart" || BackendByName("GONUM").Name() != "gonum" {
		t.Fatalf("backend lookup broken")
	}
	if BackendByName("qt").Name() != "gochart" {
		t.Fatalf("unknown backend should fall back to gochart")
	}
}

func checkSize(t *testing.T, img image.Image, w, h, tol int) {
	t.Helper()
	if img == nil {
		t.Fatalf("nil image")
	}
	b := img.Bounds()
	if abs(b.Dx()-w) > tol || abs(b.Dy()-h) > tol {
		t.Fatalf("size=%dx%d want %dx%d", b.Dx(), b.Dy(), w, h)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestRender_Backends(t *testing.T) {
	for _, b := range []Backend{GoChartBackend{}, PlotBackend{}} {
		t.Run(b.Name(), func(t *testing.T) {
			img, err := Render(b, sampleRequest())
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			checkSize(t, img, 640, 360, 2)

			rank := Request{
				XLabels: []string{"E1", "E2", "E3"},
				Series:  []Series{{Name: "rank", Values: []float64{12, nan(), 3}}},
				Options: Options{Title: "Rank", InvertY: true, Annotate: true, ValueFormat: ValueFormatInt, Width: 500, Height: 300},
			}
			img, err = Render(b, rank)
			if err != nil {
				t.Fatalf("rank render: %v", err)
			}
			checkSize(t, img, 500, 300, 2)
		})
	}
}

func TestRender_AllMissingAndSingleCategory(t *testing.T) {
	for _, b := range []Backend{GoChartBackend{}, PlotBackend{}} {
		req := Request{XLabels: []string{"E1"}, Series: []Series{{Name: "math", Values: []float64{nan()}}}, Options: Options{Width: 400, Height: 300}}
		if _, err := Render(b, req); err != nil {
			t.Fatalf("%s all-missing: %v", b.Name(), err)
		}
		req.Series[0].Values[0] = 88
		if _, err := Render(b, req); err != nil {
			t.Fatalf("%s single point: %v", b.Name(), err)
		}
	}
}

func TestRender_NoCategoriesIsBlank(t *testing.T) {
	img, err := Render(nil, Request{Options: Options{Width: 320, Height: 200}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	checkSize(t, img, 320, 200, 0)
}

func TestRender_Idempotent(t *testing.T) {
	req := sampleRequest()
	req.Annotate = false
	a, err := Render(GoChartBackend{}, req)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := Render(GoChartBackend{}, req)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	pa, _ := EncodePNG(a)
	pb, _ := EncodePNG(b)
	if string(pa) != string(pb) {
		t.Fatalf("same request should render the same image")
	}
}

// blob is a horizontal cluster of pixels of one colour, i.e. one drawn point.
type blob struct {
	cx, cy float64
	n      int
}

// colorBlobs finds the pixels within a small tolerance of hex and groups them into
// clusters separated by more than 15 empty columns, left to right.
func colorBlobs(img image.Image, hex string) []blob {
	want := drawing.ColorFromHex(hex)
	near := func(a uint32, b uint8) bool { return abs(int(a>>8)-int(b)) <= 12 }
	var pts []image.Point
	bd := img.Bounds()
	for y := bd.Min.Y; y < bd.Max.Y; y++ {
		for x := bd.Min.X; x < bd.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if near(r, want.R) && near(g, want.G) && near(b, want.B) {
				pts = append(pts, image.Point{X: x, Y: y})
			}
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
	var out []blob
	lastX := math.MinInt32
	for _, p := range pts {
		if p.X-lastX > 15 {
			out = append(out, blob{})
		}
		b := &out[len(out)-1]
		b.cx += float64(p.X)
		b.cy += float64(p.Y)
		b.n++
		lastX = p.X
	}
	for i := range out {
		out[i].cx /= float64(out[i].n)
		out[i].cy /= float64(out[i].n)
	}
	return out
}

func renderBlobs(t *testing.T, b Backend, req Request) []blob {
	t.Helper()
	img, err := Render(b, req)
	if err != nil {
		t.Fatalf("%s render: %v", b.Name(), err)
	}
	return colorBlobs(img, paletteHex(0))
}

// gapRequest has one unnamed series (no legend swatch) with the middle exam missing.
func gapRequest(first, last float64, invert bool) Request {
	return Request{
		XLabels: []string{"E1", "E2", "E3"},
		Series:  []Series{{Values: []float64{first, nan(), last}}},
		Options: Options{InvertY: invert, Width: 600, Height: 400},
	}
}

func TestRender_PointPlacement(t *testing.T) {
	for _, b := range []Backend{GoChartBackend{}, PlotBackend{}} {
		t.Run(b.Name(), func(t *testing.T) {
			pts := renderBlobs(t, b, gapRequest(10.3, 11.3, false))
			if len(pts) != 2 {
				t.Fatalf("want two isolated points around the missing exam, got %d clusters", len(pts))
			}
			// categories sit at slot centres: first and last are 2/3 of the plot width apart
			if dx := pts[1].cx - pts[0].cx; dx < 0.4*600 || dx > 0.72*600 {
				t.Fatalf("first-to-last spacing %.0fpx: categories must keep half a slot of margin", dx)
			}
			small := pts[0].cy - pts[1].cy
			if small <= 0 {
				t.Fatalf("larger value should be drawn higher: %+v", pts)
			}

			// [10.3, 11.3] pads to a span of 3 and [0, 100] to a span of 120, so the
			// vertical distances compare as (1/3) / (100/120) = 0.4.
			wide := renderBlobs(t, b, gapRequest(0, 100, false))
			if len(wide) != 2 {
				t.Fatalf("wide: %d clusters", len(wide))
			}
			big := wide[0].cy - wide[1].cy
			if ratio := small / big; ratio < 0.36 || ratio > 0.44 {
				t.Fatalf("dy ratio %.3f (dy %.1f vs %.1f): y range is not the padded data range", ratio, small, big)
			}

			inv := renderBlobs(t, b, gapRequest(10.3, 11.3, true))
			if len(inv) != 2 {
				t.Fatalf("inverted: %d clusters", len(inv))
			}
			if inv[0].cy >= inv[1].cy {
				t.Fatalf("inverted axis should draw the smaller value higher: %+v", inv)
			}
			if d := (inv[1].cy - inv[0].cy) - small; math.Abs(d) > 3 {
				t.Fatalf("inverting changed the spacing by %.1fpx", d)
			}
		})
	}
}

func TestRender_SingleCategoryCentred(t *testing.T) {
	for _, b := range []Backend{GoChartBackend{}, PlotBackend{}} {
		req := Request{XLabels: []string{"2024-01-01"}, Series: []Series{{Values: []float64{88}}}, Options: Options{Width: 600, Height: 400}}
		pts := renderBlobs(t, b, req)
		if len(pts) != 1 {
			t.Fatalf("%s: want one point got %d", b.Name(), len(pts))
		}
		if pts[0].cx < 0.35*600 || pts[0].cx > 0.65*600 {
			t.Fatalf("%s: single exam drawn at x=%.0f, want near the middle", b.Name(), pts[0].cx)
		}
	}
}

func TestRender_AllMissingDrawsNothing(t *testing.T) {
	for _, b := range []Backend{GoChartBackend{}, PlotBackend{}} {
		req := Request{XLabels: []string{"E1", "E2"}, Series: []Series{{Values: []float64{nan(), nan()}}}, Options: Options{Width: 500, Height: 300}}
		if pts := renderBlobs(t, b, req); len(pts) != 0 {
			t.Fatalf("%s: all-missing series left %d marks", b.Name(), len(pts))
		}
	}
}

func TestRender_RerenderReplacesSeries(t *testing.T) {
	two := Request{
		XLabels: []string{"E1", "E2", "E3"},
		Series: []Series{
			{Name: "math", Values: []float64{90, 95, 97}},
			{Name: "eng", Values: []float64{80, 85, 82}},
		},
		Options: Options{Width: 600, Height: 400},
	}
	one := Request{
		XLabels: []string{"E1", "E2"},
		Series:  []Series{{Name: "total", Values: []float64{170, 180}}},
		Options: Options{Width: 600, Height: 400},
	}
	for _, b := range []Backend{GoChartBackend{}, PlotBackend{}} {
		first, err := Render(b, two)
		if err != nil {
			t.Fatalf("%s: %v", b.Name(), err)
		}
		if len(colorBlobs(first, paletteHex(1))) == 0 {
			t.Fatalf("%s: second series not drawn", b.Name())
		}
		second, err := Render(b, one)
		if err != nil {
			t.Fatalf("%s: %v", b.Name(), err)
		}
		if n := len(colorBlobs(second, paletteHex(1))); n != 0 {
			t.Fatalf("%s: stale series from the previous chart (%d clusters)", b.Name(), n)
		}
		if len(colorBlobs(second, paletteHex(0))) == 0 {
			t.Fatalf("%s: new series missing", b.Name())
		}
	}
}

func TestDrawHint(t *testing.T) {
	src := Blank(200, 100)
	out := DrawHint(src, "hint")
	r, _, _, _ := out.At(4, 90).RGBA()
	if r>>8 > 128 {
		t.Fatalf("hint strip not drawn at bottom-left: r=%d", r>>8)
	}
	if r, _, _, _ := src.At(4, 90).RGBA(); r>>8 != 255 {
		t.Fatalf("source image modified")
	}
	if DrawHint(src, "  ") != image.Image(src) {
		t.Fatalf("blank hint should return the input")
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.png")
	if err := WritePNG(path, Blank(100, 50)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Fatalf("png not written: %v", err)
	}
	if err := WritePNG(filepath.Join(t.TempDir(), "missing", "c.png"), Blank(10, 10)); err == nil {
		t.Fatalf("expected write error")
	}
}

func TestYTicksInsideRange(t *testing.T) {
	ticks := yTicks(78.5, 96.5)
	if len(ticks) < 2 {
		t.Fatalf("ticks=%v", ticks)
	}
	for _, tk := range ticks {
		if tk.Value < 78.5 || tk.Value > 96.5 {
			t.Fatalf("tick %v outside range", tk.Value)
		}
	}
	if ticks[0].Value != 78.5 || ticks[len(ticks)-1].Value != 96.5 {
		t.Fatalf("ticks must span the padded range: %v", ticks)
	}
	if ticks[0].Label != "" || ticks[1].Label != "80" {
		t.Fatalf("bounds off the nice grid stay unlabeled: %v", ticks)
	}
	ticks = yTicks(0, 10)
	if ticks[0].Label != "0" || ticks[len(ticks)-1].Label != "10" {
		t.Fatalf("nice bounds keep their labels: %v", ticks)
	}
}
