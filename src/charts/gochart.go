package charts

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// GoChartBackend renders with github.com/wcharczuk/go-chart.
type GoChartBackend struct{}

func (GoChartBackend) Name() string { return "gochart" }

// lineStyle returns the stroke and dot style of one series. go-chart only draws round
// dots, so square and triangle markers render as larger dots.
func lineStyle(col drawing.Color, m Marker) chart.Style {
	st := chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    4,
	}
	switch m {
	case MarkerSquare, MarkerTriangle:
		st.DotWidth = 5
	case MarkerNone:
		st.DotWidth = 0
	}
	return st
}

func (GoChartBackend) Draw(plan *Plan) (image.Image, error) {
	n := len(plan.XLabels)
	var series, legendSeries []chart.Series
	var notes []chart.Value2
	for i, s := range plan.Series {
		col := drawing.ColorFromHex(paletteHex(i))
		st := lineStyle(col, s.Marker)
		// a gap splits one series into several; the legend lists it once
		if s.Name != "" {
			legendSeries = append(legendSeries, chart.ContinuousSeries{Name: s.Name, Style: st})
		}
		for _, seg := range plan.Segments[i] {
			series = append(series, chart.ContinuousSeries{Name: s.Name, XValues: seg.Xs(), YValues: seg.Values, Style: st})
			if plan.Annotate {
				for k, v := range seg.Values {
					notes = append(notes, chart.Value2{XValue: float64(seg.Start + k), YValue: v, Label: FormatValue(v, plan.ValueFormat)})
				}
			}
		}
	}
	if len(notes) > 0 {
		series = append(series, chart.AnnotationSeries{
			Annotations: notes,
			Style: chart.Style{
				FontSize:    8,
				StrokeColor: drawing.ColorFromHex("bbbbbb"),
				FillColor:   drawing.ColorWhite,
				FontColor:   drawing.ColorFromHex("333333"),
			},
		})
	}
	if len(series) == 0 {
		// go-chart needs one visible series; this one draws nothing
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{0},
			YValues: []float64{plan.YMin},
			Style:   chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1, DotWidth: 0},
		})
	}

	// go-chart spans an axis over its explicit ticks, so unlabeled ticks pin the half-slot
	// margins of the category axis.
	ticks := make([]chart.Tick, 0, n+2)
	ticks = append(ticks, chart.Tick{Value: -0.5})
	for i, l := range plan.XLabels {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: l})
	}
	ticks = append(ticks, chart.Tick{Value: float64(n) - 0.5})
	xAxis := chart.XAxis{
		Name:  plan.XAxisLabel,
		Ticks: ticks,
		Range: &chart.ContinuousRange{Min: -0.5, Max: float64(n) - 0.5},
	}
	padBottom := 28
	if plan.XAxisLabel != "" {
		padBottom += 18
	}
	if plan.RotateXLabels {
		xAxis.TickStyle = chart.Style{TextRotationDegrees: 45}
		// 45 degrees: roughly 5px of height per character of the longest label
		padBottom += longestLabel(plan.XLabels) * 5
	}

	ch := chart.Chart{
		Title:      plan.Title,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: padBottom}},
		XAxis:      xAxis,
		YAxis: chart.YAxis{
			Name:  plan.YAxisLabel,
			Range: &chart.ContinuousRange{Min: plan.YMin, Max: plan.YMax, Descending: plan.InvertY},
			Ticks: yTicks(plan.YMin, plan.YMax),
		},
		Series: series,
		Width:  plan.Width,
		Height: plan.Height,
	}
	if len(legendSeries) > 0 {
		legendChart := chart.Chart{Series: legendSeries}
		ch.Elements = []chart.Renderable{chart.Legend(&legendChart)}
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// yTicks keeps the nice ticks that fall inside [lo, hi] and always starts at lo and ends at
// hi, so the axis covers exactly the padded range. Bounds that are not nice stay unlabeled.
func yTicks(lo, hi float64) []chart.Tick {
	eps := (hi - lo) * 1e-9
	first, last := chart.Tick{Value: lo}, chart.Tick{Value: hi}
	var inner []chart.Tick
	for _, t := range niceTicks(lo, hi, 6) {
		switch {
		case math.Abs(t.Value-lo) <= eps:
			first.Label = t.Label
		case math.Abs(t.Value-hi) <= eps:
			last.Label = t.Label
		case t.Value > lo && t.Value < hi:
			inner = append(inner, t)
		}
	}
	labeled := len(inner)
	if first.Label != "" {
		labeled++
	}
	if last.Label != "" {
		labeled++
	}
	if labeled < 2 {
		first.Label, last.Label = formatTick(lo), formatTick(hi)
	}
	out := append([]chart.Tick{first}, inner...)
	return append(out, last)
}

// niceTicks generates up to n desired tick marks between [min, max] using nice increments.
func niceTicks(min, max float64, n int) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		step := c * mag
		count := math.Max(2, math.Ceil(span/step))
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	ticks := []chart.Tick{}
	for v := start; v <= end+bestStep/2; v += bestStep {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
		if len(ticks) > n+2 {
			break
		}
	}
	return ticks
}

func formatTick(v float64) string {
	av := math.Abs(v)
	switch {
	case av < 1e-9:
		return "0"
	case av >= 100 || av == math.Trunc(av):
		return fmt.Sprintf("%.0f", v)
	case av >= 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
