package chart

import (
	"fmt"
	"slices"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// RowSpec is one plot area. A row with several axes overlays them, each with
// its own scale.
type RowSpec struct {
	Height float64
	Axes   []Axis
}

// Layout is a presentation policy: canvas size, padding and the rows that
// make up the chart.
type Layout struct {
	Name      string
	Width     float64
	Height    float64
	PadLeft   float64
	PadRight  float64
	PadTop    float64
	PadBottom float64
	Gap       float64
	Rows      []RowSpec
}

var (
	// Stacked puts SOC, sun elevation and power in three rows.
	Stacked = Layout{
		Name:      types.LayoutStacked,
		Width:     1000,
		Height:    700,
		PadLeft:   58,
		PadRight:  18,
		PadTop:    18,
		PadBottom: 46,
		Gap:       14,
		Rows: []RowSpec{
			{Height: 120, Axes: []Axis{AxisSOC}},
			{Height: 90, Axes: []Axis{AxisSun}},
			{Height: 360, Axes: []Axis{AxisPower}},
		},
	}

	// Compact drops the sun row.
	Compact = Layout{
		Name:      types.LayoutCompact,
		Width:     1000,
		Height:    420,
		PadLeft:   58,
		PadRight:  18,
		PadTop:    18,
		PadBottom: 46,
		Gap:       14,
		Rows: []RowSpec{
			{Height: 120, Axes: []Axis{AxisSOC}},
			{Height: 222, Axes: []Axis{AxisPower}},
		},
	}

	// Overlay draws everything in a single plot with three y scales.
	Overlay = Layout{
		Name:      types.LayoutOverlay,
		Width:     1000,
		Height:    520,
		PadLeft:   58,
		PadRight:  18,
		PadTop:    18,
		PadBottom: 46,
		Rows: []RowSpec{
			{Height: 456, Axes: []Axis{AxisSOC, AxisSun, AxisPower}},
		},
	}
)

// LayoutByName returns the layout preset with the given name. An empty name
// is the stacked layout.
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", types.LayoutStacked:
		return Stacked, nil
	case types.LayoutCompact:
		return Compact, nil
	case types.LayoutOverlay:
		return Overlay, nil
	default:
		return Layout{}, fmt.Errorf("unknown layout: %s", name)
	}
}

// HasAxis returns true if any row of the layout draws the axis.
func (l Layout) HasAxis(a Axis) bool {
	for _, r := range l.Rows {
		if slices.Contains(r.Axes, a) {
			return true
		}
	}
	return false
}

// Left returns the x pixel where the plot area starts.
func (l Layout) Left() float64 {
	return l.PadLeft
}

// Right returns the x pixel where the plot area ends.
func (l Layout) Right() float64 {
	return l.Width - l.PadRight
}

// Bottom returns the y pixel of the bottom of the last row.
func (l Layout) Bottom() float64 {
	y := l.PadTop
	for i, r := range l.Rows {
		if i > 0 {
			y += l.Gap
		}
		y += r.Height
	}
	return y
}
