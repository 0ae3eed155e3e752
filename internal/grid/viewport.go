// Package grid computes which part of a matrix is on screen and turns that
// window into view models. Nothing outside the window is materialized.
package grid

import (
	"math"
	"sort"
)

const (
	DefaultRowHeight      = 48
	DefaultOverscan       = 5
	DefaultColumnWidth    = 180
	DefaultColumnOverscan = 1
)

// Viewport is the scroll container the grid is drawn into.
type Viewport struct {
	ContainerHeight float64 `json:"containerHeight" koanf:"height"`
	ScrollTop       float64 `json:"scrollTop" koanf:"scroll_top"`
	ContainerWidth  float64 `json:"containerWidth" koanf:"width"`
	ScrollLeft      float64 `json:"scrollLeft" koanf:"scroll_left"`
	RowHeight       float64 `json:"rowHeight" koanf:"row_height"`
	Overscan        int     `json:"overscan" koanf:"overscan"`
	ColumnOverscan  int     `json:"columnOverscan" koanf:"column_overscan"`
}

// DefaultViewport returns a viewport of the given height with the default
// row height and overscan.
func DefaultViewport(height, scrollTop float64) Viewport {
	return Viewport{
		ContainerHeight: height,
		ScrollTop:       scrollTop,
		RowHeight:       DefaultRowHeight,
		Overscan:        DefaultOverscan,
		ColumnOverscan:  DefaultColumnOverscan,
	}
}

func (vp Viewport) rowHeight() float64 {
	if !(vp.RowHeight > 0) || math.IsInf(vp.RowHeight, 0) {
		return DefaultRowHeight
	}
	return vp.RowHeight
}

// RowWindow is the half-open row range [Start, End) to draw. OffsetY is where
// row Start sits inside a spacer of TotalHeight.
type RowWindow struct {
	Start       int     `json:"start"`
	End         int     `json:"end"`
	OffsetY     float64 `json:"offsetY"`
	TotalHeight float64 `json:"totalHeight"`
}

// Len is the number of rows in the window.
func (w RowWindow) Len() int { return w.End - w.Start }

// ComputeRowWindow places the first visible row at floor(scrollTop/rowHeight)
// and draws enough rows to fill the container plus the overscan below it.
func ComputeRowWindow(totalRows int, vp Viewport) RowWindow {
	if totalRows <= 0 {
		return RowWindow{}
	}
	rh := vp.rowHeight()
	rows := float64(totalRows)
	// Clamp in float space: converting an out-of-range float to int is
	// undefined and yields min-int on amd64.
	start := int(math.Min(math.Floor(finite(vp.ScrollTop)/rh), rows))
	visible := int(math.Min(math.Ceil(finite(vp.ContainerHeight)/rh), rows))
	end := min(start+visible+min(max(vp.Overscan, 0), totalRows), totalRows)
	return RowWindow{
		Start:       start,
		End:         end,
		OffsetY:     float64(start) * rh,
		TotalHeight: float64(totalRows) * rh,
	}
}

// ColumnWindow is the half-open column range [Start, End) to draw.
type ColumnWindow struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	OffsetX    float64 `json:"offsetX"`
	TotalWidth float64 `json:"totalWidth"`
}

// ComputeColumnWindow finds the columns intersecting the horizontal viewport.
// A viewport without a width shows every column.
func ComputeColumnWindow(widths []float64, vp Viewport) ColumnWindow {
	n := len(widths)
	if n == 0 {
		return ColumnWindow{}
	}
	// prefix[i] is the left edge of column i; prefix[n] the total width.
	prefix := make([]float64, n+1)
	for i, w := range widths {
		if w <= 0 {
			w = DefaultColumnWidth
		}
		prefix[i+1] = prefix[i] + w
	}
	total := prefix[n]
	if !(vp.ContainerWidth > 0) {
		return ColumnWindow{Start: 0, End: n, TotalWidth: total}
	}
	left := finite(vp.ScrollLeft)
	right := left + vp.ContainerWidth

	// first column whose right edge is past the left boundary
	start := sort.Search(n, func(i int) bool { return prefix[i+1] > left })
	// first column starting at or beyond the right boundary
	end := sort.Search(n, func(i int) bool { return prefix[i] >= right })
	if end < start {
		end = start
	}
	end = min(end+max(vp.ColumnOverscan, 0), n)
	if start >= n {
		start = n
		end = n
	}
	return ColumnWindow{Start: start, End: end, OffsetX: prefix[start], TotalWidth: total}
}

// finite maps NaN, infinities and negatives to 0.
func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
