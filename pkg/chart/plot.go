package chart

import (
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

const (
	// TickCount is the number of x axis labels.
	TickCount = 7

	// TickFormat is the time layout of x axis labels.
	TickFormat = "Jan 2 15:04"
)

// Point is a position in the layout's pixel space.
type Point struct {
	X float64
	Y float64
}

// Scale is the value domain of an axis within a row.
type Scale struct {
	Axis Axis
	Min  float64
	Max  float64
}

// Row is a laid out RowSpec.
type Row struct {
	Top    float64
	Height float64
	Scales []Scale
}

// Bottom returns the y pixel of the row's bottom edge.
func (r Row) Bottom() float64 {
	return r.Top + r.Height
}

// Y maps value onto the row using the scale.
func (r Row) Y(s Scale, value float64) float64 {
	return MapToPixel(value, s.Min, s.Max, r.Bottom(), -r.Height)
}

// Line is a channel mapped into pixel space.
type Line struct {
	Channel Channel
	Style   Style
	Row     int
	Scale   Scale
	Points  []types.TimeSeriesPoint
	Pixels  []Point
}

// Tick is an x axis label.
type Tick struct {
	X     float64
	Time  time.Time
	Label string
}

// Marker is a vertical line at a point in time.
type Marker struct {
	X     float64
	Time  time.Time
	Label string
}

// Input is everything Compose needs besides the layout.
type Input struct {
	Series []Series
	// Now marks the boundary between history and forecast. The zero value
	// means no marker.
	Now      time.Time
	Location *time.Location
}

// Plot is a fully laid out chart. Every writer draws from a Plot so the
// output formats share the same geometry.
type Plot struct {
	Layout Layout
	XMin   time.Time
	XMax   time.Time
	Rows   []Row
	Lines  []Line
	Ticks  []Tick
	Now    *Marker
}

// X maps t onto the shared x axis.
func (p Plot) X(t time.Time) float64 {
	return MapToPixel(unixMilli(t), unixMilli(p.XMin), unixMilli(p.XMax), p.Layout.Left(), p.Layout.Right()-p.Layout.Left())
}

// Empty returns true if no line has any points.
func (p Plot) Empty() bool {
	for _, l := range p.Lines {
		if len(l.Points) > 0 {
			return false
		}
	}
	return true
}

// Compose lays out the series. Series on an axis the layout doesn't draw are
// dropped. The x domain spans every remaining series and each axis gets its
// own value range.
func Compose(l Layout, in Input) Plot {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	var kept []Series
	for _, s := range in.Series {
		if l.HasAxis(s.Channel.Style().Axis) {
			kept = append(kept, s)
		}
	}
	byAxis := map[Axis][][]types.TimeSeriesPoint{}
	all := make([][]types.TimeSeriesPoint, 0, len(kept))
	for _, s := range kept {
		a := s.Channel.Style().Axis
		byAxis[a] = append(byAxis[a], s.Points)
		all = append(all, s.Points)
	}

	p := Plot{Layout: l}
	p.XMin, p.XMax, _ = TimeDomain(all...)

	rowOf := map[Axis]int{}
	scaleOf := map[Axis]Scale{}
	top := l.PadTop
	for i, spec := range l.Rows {
		if i > 0 {
			top += l.Gap
		}
		row := Row{Top: top, Height: spec.Height}
		for _, a := range spec.Axes {
			as := a.Spec()
			s := Scale{Axis: a, Min: as.FallbackMin, Max: as.FallbackMax}
			if !as.Fixed {
				s.Min, s.Max = RangeOf(as.FallbackMin, as.FallbackMax, as.PaddingPct, byAxis[a]...)
			}
			row.Scales = append(row.Scales, s)
			rowOf[a] = i
			scaleOf[a] = s
		}
		p.Rows = append(p.Rows, row)
		top += spec.Height
	}

	for _, s := range kept {
		style := s.Channel.Style()
		line := Line{
			Channel: s.Channel,
			Style:   style,
			Row:     rowOf[style.Axis],
			Scale:   scaleOf[style.Axis],
			Points:  s.Points,
			Pixels:  make([]Point, 0, len(s.Points)),
		}
		row := p.Rows[line.Row]
		for _, pt := range s.Points {
			line.Pixels = append(line.Pixels, Point{X: p.X(pt.Timestamp), Y: row.Y(line.Scale, pt.Value)})
		}
		p.Lines = append(p.Lines, line)
	}

	if len(all) > 0 && !p.Empty() {
		p.Ticks = ticks(p, loc)
		if !in.Now.IsZero() {
			p.Now = &Marker{X: p.X(in.Now), Time: in.Now, Label: "Now"}
		}
	}
	return p
}

// ticks spreads TickCount labels evenly across the x domain.
func ticks(p Plot, loc *time.Location) []Tick {
	span := p.XMax.Sub(p.XMin)
	out := make([]Tick, 0, TickCount)
	for i := 0; i < TickCount; i++ {
		t := p.XMin.Add(span * time.Duration(i) / (TickCount - 1))
		out = append(out, Tick{
			X:     p.X(t),
			Time:  t,
			Label: t.In(loc).Format(TickFormat),
		})
	}
	return out
}
