// Package charts draws category-axis line charts for exam series. A Request is
// validated into a Plan (gap segments, padded Y range) which a Backend turns into an
// image. Two backends exist: go-chart (default) and gonum/plot.
package charts

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/QianXiquq/RankingAnalyzer/src/records"
)

const (
	DefaultWidth  = 1100
	DefaultHeight = 520
)

// Marker selects the point glyph of a series.
type Marker int

const (
	MarkerCircle Marker = iota
	MarkerSquare
	MarkerTriangle
	MarkerNone
)

// ValueFormat selects how annotation values are printed.
type ValueFormat int

const (
	// ValueFormatRounded prints the value rounded to the nearest integer (scores).
	ValueFormatRounded ValueFormat = iota
	// ValueFormatInt prints the integer part (ranks).
	ValueFormatInt
)

// Series is one named line. Values are index-aligned with Request.XLabels; NaN marks a
// missing point.
type Series struct {
	Name   string
	Values []float64
	Marker Marker
}

// Options are the presentation settings of one chart.
type Options struct {
	Title         string
	XAxisLabel    string
	YAxisLabel    string
	InvertY       bool
	Annotate      bool
	RotateXLabels bool
	ValueFormat   ValueFormat
	Width         int
	Height        int
}

// Request is everything needed to draw one chart.
type Request struct {
	XLabels []string
	Series  []Series
	Options
}

// RequestError reports a series whose length does not match the x categories.
type RequestError struct {
	Series string
	Got    int
	Want   int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("series %q has %d values, want %d (one per x label)", e.Series, e.Got, e.Want)
}

// Segment is a run of consecutive non-missing values starting at category Start.
type Segment struct {
	Start  int
	Values []float64
}

// Xs returns the category positions of the segment's values.
func (s Segment) Xs() []float64 {
	xs := make([]float64, len(s.Values))
	for i := range xs {
		xs[i] = float64(s.Start + i)
	}
	return xs
}

// Plan is a validated Request plus the geometry shared by all backends.
type Plan struct {
	Request
	// Segments[i] holds the drawable runs of Series[i]; a missing value ends a run.
	Segments [][]Segment
	YMin     float64
	YMax     float64
	// HasData is false when every value of every series is missing.
	HasData bool
}

// Backend turns a Plan into an image.
type Backend interface {
	Name() string
	Draw(plan *Plan) (image.Image, error)
}

// NewPlan validates req and computes segments and the Y range. Width and Height fall back
// to DefaultWidth and DefaultHeight.
func NewPlan(req Request) (*Plan, error) {
	n := len(req.XLabels)
	for _, s := range req.Series {
		if len(s.Values) != n {
			return nil, &RequestError{Series: s.Name, Got: len(s.Values), Want: n}
		}
	}
	if req.Width <= 0 {
		req.Width = DefaultWidth
	}
	if req.Height <= 0 {
		req.Height = DefaultHeight
	}
	p := &Plan{Request: req, Segments: make([][]Segment, len(req.Series))}
	for i, s := range req.Series {
		p.Segments[i] = Segments(s.Values)
		if len(p.Segments[i]) > 0 {
			p.HasData = true
		}
	}
	p.YMin, p.YMax = YRange(req.Series)
	return p, nil
}

// Render draws req with b (go-chart when b is nil). A request without x categories yields
// a blank "no data" image instead of an error. Render keeps no state between calls.
func Render(b Backend, req Request) (image.Image, error) {
	if b == nil {
		b = GoChartBackend{}
	}
	plan, err := NewPlan(req)
	if err != nil {
		return nil, err
	}
	if len(plan.XLabels) == 0 {
		return DrawMessage(Blank(plan.Width, plan.Height), "No data"), nil
	}
	img, err := b.Draw(plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	records.Debugf("rendered %q with %s: categories=%d series=%d y=[%.2f,%.2f]", plan.Title, b.Name(), len(plan.XLabels), len(plan.Series), plan.YMin, plan.YMax)
	return img, nil
}

// Segments splits vals into runs of non-missing values.
func Segments(vals []float64) []Segment {
	var out []Segment
	start := -1
	for i, v := range vals {
		missing := math.IsNaN(v) || math.IsInf(v, 0)
		switch {
		case !missing && start < 0:
			start = i
		case missing && start >= 0:
			out = append(out, Segment{Start: start, Values: vals[start:i]})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, Segment{Start: start, Values: vals[start:]})
	}
	return out
}

// YRange is [min-pad, max+pad] over every present value with pad = max(1, (max-min)*0.1),
// or [0, 10] when nothing is present.
func YRange(series []Series) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 10
	}
	pad := math.Max(1, (hi-lo)*0.1)
	return lo - pad, hi + pad
}

// FormatValue prints an annotation value.
func FormatValue(v float64, f ValueFormat) string {
	switch f {
	case ValueFormatInt:
		return strconv.FormatInt(int64(v), 10)
	default:
		return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	}
}

// BackendNames lists the accepted backend names, default first.
func BackendNames() []string { return []string{"gochart", "gonum"} }

// BackendByName resolves a backend name; unknown names fall back to go-chart.
func BackendByName(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gochart", "go-chart":
		return GoChartBackend{}
	case "gonum", "plot", "gonum/plot":
		return PlotBackend{}
	default:
		records.Warnf("unknown chart backend %q, using gochart", name)
		return GoChartBackend{}
	}
}

// palette is the tab10 cycle.
var palette = []string{"1f77b4", "ff7f0e", "2ca02c", "d62728", "9467bd", "8c564b", "e377c2", "7f7f7f", "bcbd22", "17becf"}

func paletteHex(i int) string { return palette[i%len(palette)] }

// longestLabel returns the rune length of the longest x label.
func longestLabel(labels []string) int {
	n := 0
	for _, l := range labels {
		if c := len([]rune(l)); c > n {
			n = c
		}
	}
	return n
}
