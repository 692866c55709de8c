package uihelpers

import (
	"path/filepath"
)

// ComputeChartDimensions applies the width/height clamp rules used for charts.
// Input: available width (e.g. window width). Returns clamped width & height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 640 {
		w = 640
	}
	h := int(float32(w) * 0.45)
	if h < 320 {
		h = 320
	}
	if h > 680 {
		h = 680
	}
	return w, h
}

// ContainRect returns where an image of imgW x imgH lands inside a view of viewW x viewH
// when scaled to fit while keeping its aspect ratio: the top-left corner, drawn size and
// the scale factor.
func ContainRect(imgW, imgH, viewW, viewH float32) (x, y, w, h, scale float32) {
	if imgW <= 0 || imgH <= 0 || viewW <= 0 || viewH <= 0 {
		return 0, 0, 0, 0, 0
	}
	scale = viewW / imgW
	if s := viewH / imgH; s < scale {
		scale = s
	}
	w, h = imgW*scale, imgH*scale
	return (viewW - w) / 2, (viewH - h) / 2, w, h, scale
}

// NearestIndex maps an x position inside [plotLeft, plotRight] to one of n equally wide
// categories. It returns -1 when n is 0 or x lies outside the plot.
func NearestIndex(x, plotLeft, plotRight float32, n int) int {
	if n <= 0 || plotRight <= plotLeft || x < plotLeft || x > plotRight {
		return -1
	}
	slot := (plotRight - plotLeft) / float32(n)
	i := int((x - plotLeft) / slot)
	if i >= n {
		i = n - 1
	}
	return i
}

// TruncatePath shortens p to about n characters, keeping the file name.
func TruncatePath(p string, n int) string {
	if len(p) <= n {
		return p
	}
	base := filepath.Base(p)
	if len(base)+4 >= n {
		return "..." + base
	}
	dir := filepath.Dir(p)
	left := n - len(base) - 4
	if len(dir) > left {
		dir = dir[:left]
	}
	return dir + "/..." + base
}
