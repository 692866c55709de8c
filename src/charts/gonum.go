package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotBackend renders with gonum.org/v1/plot.
type PlotBackend struct{}

func (PlotBackend) Name() string { return "gonum" }

// pixelsToPoints converts output pixels to vg lengths at the 96 dpi used by the png canvas.
const pixelsToPoints = 72.0 / 96.0

func glyphFor(m Marker) draw.GlyphDrawer {
	switch m {
	case MarkerSquare:
		return draw.BoxGlyph{}
	case MarkerTriangle:
		return draw.TriangleGlyph{}
	default:
		return draw.CircleGlyph{}
	}
}

func rgba(hex string) color.RGBA {
	c := drawing.ColorFromHex(hex)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func (PlotBackend) Draw(plan *Plan) (image.Image, error) {
	p := plot.New()
	p.Title.Text = plan.Title
	p.X.Label.Text = plan.XAxisLabel
	p.Y.Label.Text = plan.YAxisLabel
	p.BackgroundColor = color.White
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, s := range plan.Series {
		col := rgba(paletteHex(i))
		var thumbs []plot.Thumbnailer
		for j, seg := range plan.Segments[i] {
			pts := make(plotter.XYs, len(seg.Values))
			for k, v := range seg.Values {
				pts[k] = plotter.XY{X: float64(seg.Start + k), Y: v}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("series %q: %w", s.Name, err)
			}
			line.LineStyle.Color = col
			line.LineStyle.Width = vg.Points(1.5)
			p.Add(line)
			if j == 0 {
				thumbs = append(thumbs, line)
			}
			if s.Marker != MarkerNone {
				sc, err := plotter.NewScatter(pts)
				if err != nil {
					return nil, fmt.Errorf("series %q: %w", s.Name, err)
				}
				sc.GlyphStyle.Color = col
				sc.GlyphStyle.Shape = glyphFor(s.Marker)
				sc.GlyphStyle.Radius = vg.Points(3)
				p.Add(sc)
				if j == 0 {
					thumbs = append(thumbs, sc)
				}
			}
			if plan.Annotate {
				lbls := make([]string, len(seg.Values))
				for k, v := range seg.Values {
					lbls[k] = FormatValue(v, plan.ValueFormat)
				}
				labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: lbls})
				if err != nil {
					return nil, fmt.Errorf("series %q labels: %w", s.Name, err)
				}
				labels.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(4)}
				p.Add(labels)
			}
		}
		if len(thumbs) > 0 && s.Name != "" {
			p.Legend.Add(s.Name, thumbs...)
		}
	}

	n := len(plan.XLabels)
	ticks := make([]plot.Tick, n)
	for i, l := range plan.XLabels {
		ticks[i] = plot.Tick{Value: float64(i), Label: l}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	if plan.RotateXLabels {
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	yt := yTicks(plan.YMin, plan.YMax)
	yticks := make([]plot.Tick, len(yt))
	for i, t := range yt {
		yticks[i] = plot.Tick{Value: t.Value, Label: t.Label}
	}
	p.Y.Tick.Marker = plot.ConstantTicks(yticks)
	if plan.InvertY {
		p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	}
	// Add widens the ranges to the data; the plan's ranges win.
	p.X.Min, p.X.Max = -0.5, float64(n)-0.5
	p.Y.Min, p.Y.Max = plan.YMin, plan.YMax

	w := vg.Length(float64(plan.Width) * pixelsToPoints)
	h := vg.Length(float64(plan.Height) * pixelsToPoints)
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
