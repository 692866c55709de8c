package main

import (
	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/QianXiquq/RankingAnalyzer/cmd/rankviewer/uihelpers"
)

// Approximate plot area insets of the rendered chart image, in image pixels: background
// padding plus the y axis labels on the left.
const (
	plotLeftInsetPx  = 16 + 48
	plotRightInsetPx = 16
)

// chartView shows the chart image and reports the exam under the mouse in the status line.
type chartView struct {
	widget.BaseWidget
	state *uiState
}

var _ desktop.Hoverable = (*chartView)(nil)

func newChartView(state *uiState) *chartView {
	c := &chartView{state: state}
	c.ExtendBaseWidget(c)
	return c
}

func (c *chartView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(c.state.chartImg)
}

func (c *chartView) MouseIn(ev *desktop.MouseEvent) { c.MouseMoved(ev) }

func (c *chartView) MouseMoved(ev *desktop.MouseEvent) {
	st := c.state
	if st.chartImg == nil || st.chartImg.Image == nil || st.store.Empty() {
		return
	}
	b := st.chartImg.Image.Bounds()
	sz := c.Size()
	x, _, _, _, scale := uihelpers.ContainRect(float32(b.Dx()), float32(b.Dy()), sz.Width, sz.Height)
	if scale == 0 {
		return
	}
	imgX := (ev.Position.X - x) / scale
	i := uihelpers.NearestIndex(imgX, plotLeftInsetPx, float32(b.Dx()-plotRightInsetPx), len(st.store.Prepared().XLabels))
	if i < 0 {
		return
	}
	st.statusLabel.SetText(hoverText(st.store, st.kind, i))
}

func (c *chartView) MouseOut() {}
