package card

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	pngAxisColor = drawing.ColorFromHex("e5e7eb")
	pngTextColor = drawing.ColorFromHex("6b7280")
	pngDashArray = []float64{5, 4}
	pngNowDashes = []float64{4, 4}
)

// placeholder canvas size
const (
	pngPlaceholderWidth  = 600
	pngPlaceholderHeight = 80
)

// WritePNG rasterizes the view with the same geometry as the HTML chart.
// Placeholder views are drawn as their message.
func WritePNG(w io.Writer, v View) error {
	width, height := pngPlaceholderWidth, pngPlaceholderHeight
	if v.Kind == ViewChart {
		width, height = int(v.Plot.Layout.Width), int(v.Plot.Layout.Height)
	}
	r, err := chart.PNG(width, height)
	if err != nil {
		return fmt.Errorf("error creating png renderer: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("error loading font: %w", err)
	}
	r.SetFont(font)

	fillRect(r, 0, 0, width, height, drawing.ColorWhite)

	if v.Kind != ViewChart {
		r.SetFontColor(pngTextColor)
		r.SetFontSize(14)
		r.Text(v.Message, 16, height/2+5)
		if err := r.Save(w); err != nil {
			return fmt.Errorf("error encoding png: %w", err)
		}
		return nil
	}

	p := v.Plot
	l := p.Layout
	x0, x1 := l.Left(), l.Right()
	top, bottom := l.PadTop, l.Bottom()

	r.SetStrokeColor(pngAxisColor)
	r.SetStrokeWidth(1)
	for _, row := range p.Rows {
		strokeSegment(r, x0, row.Bottom(), x1, row.Bottom())
	}
	strokeSegment(r, x0, top, x0, bottom)
	for _, t := range p.Ticks {
		strokeSegment(r, t.X, bottom, t.X, bottom+6)
	}

	for _, line := range p.Lines {
		if len(line.Pixels) == 0 {
			continue
		}
		r.ResetStyle()
		r.SetStrokeColor(drawing.ColorFromHex(strings.TrimPrefix(line.Style.Color, "#")))
		r.SetStrokeWidth(line.Style.Width)
		if line.Style.Dashed {
			r.SetStrokeDashArray(pngDashArray)
		}
		r.MoveTo(px(line.Pixels[0].X), px(line.Pixels[0].Y))
		for _, pt := range line.Pixels[1:] {
			r.LineTo(px(pt.X), px(pt.Y))
		}
		r.Stroke()
	}

	r.ResetStyle()
	r.SetFont(font)
	r.SetFontColor(pngTextColor)
	if p.Now != nil {
		r.SetStrokeColor(pngTextColor)
		r.SetStrokeWidth(1.2)
		r.SetStrokeDashArray(pngNowDashes)
		strokeSegment(r, p.Now.X, top, p.Now.X, bottom)
		r.SetStrokeDashArray(nil)
		r.SetFontSize(11)
		r.Text(p.Now.Label, px(p.Now.X+4), px(top+12))
	}

	r.SetFontSize(11)
	for _, row := range p.Rows {
		labels := make([]string, 0, len(row.Scales))
		for _, s := range row.Scales {
			labels = append(labels, s.Axis.Spec().Label)
		}
		r.Text(strings.Join(labels, " / "), 8, px(row.Top+12))
	}

	r.SetFontSize(10)
	for _, t := range p.Ticks {
		box := r.MeasureText(t.Label)
		r.Text(t.Label, px(t.X)-box.Width()/2, height-16)
	}

	if err := r.Save(w); err != nil {
		return fmt.Errorf("error encoding png: %w", err)
	}
	return nil
}

func px(v float64) int {
	return int(math.Round(v))
}

func strokeSegment(r chart.Renderer, xa, ya, xb, yb float64) {
	r.MoveTo(px(xa), px(ya))
	r.LineTo(px(xb), px(yb))
	r.Stroke()
}

func fillRect(r chart.Renderer, x, y, w, h int, c drawing.Color) {
	r.SetFillColor(c)
	r.MoveTo(x, y)
	r.LineTo(x+w, y)
	r.LineTo(x+w, y+h)
	r.LineTo(x, y+h)
	r.Close()
	r.Fill()
}
