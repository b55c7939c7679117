package card

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/nodeenergy/nodeenergy/pkg/chart"
)

//go:embed templates/card.html.tmpl
var cardTemplate string

var htmlTemplate = template.Must(template.New("card").Funcs(template.FuncMap{
	"px": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 1, 64)
	},
	"add": func(a, b float64) float64 {
		return a + b
	},
}).Parse(cardTemplate))

type htmlLine struct {
	Channel string
	Label   string
	Color   string
	Width   float64
	Dashed  bool
	Points  string
}

type htmlSegment struct {
	X1, Y1, X2, Y2 float64
}

type htmlText struct {
	X, Y float64
	Text string
}

type scriptSeries struct {
	Channel string       `json:"channel"`
	Label   string       `json:"label"`
	Points  [][2]float64 `json:"points"`
}

type scriptData struct {
	XMin   int64          `json:"xMin"`
	XMax   int64          `json:"xMax"`
	Left   float64        `json:"left"`
	Right  float64        `json:"right"`
	Width  float64        `json:"width"`
	Zone   string         `json:"zone"`
	Series []scriptSeries `json:"series"`
}

type htmlData struct {
	Header      string
	Title       string
	Message     string
	Placeholder bool
	Width       float64
	Height      float64
	Chips       []Chip
	Axes        []htmlSegment
	Labels      []htmlText
	Lines       []htmlLine
	Ticks       []chart.Tick
	TickTop     float64
	TickY       float64
	Now         *chart.Marker
	NowTop      float64
	NowBottom   float64
	Data        scriptData
}

// WriteHTML writes the view as a self-contained HTML fragment with an inline
// SVG chart, a legend and the hover behavior.
func WriteHTML(w io.Writer, v View) error {
	if err := htmlTemplate.Execute(w, newHTMLData(v)); err != nil {
		return fmt.Errorf("error executing card template: %w", err)
	}
	return nil
}

func newHTMLData(v View) htmlData {
	d := htmlData{
		Header:  Header,
		Title:   v.Title,
		Message: v.Message,
	}
	if v.Kind != ViewChart {
		d.Placeholder = true
		return d
	}

	p := v.Plot
	l := p.Layout
	d.Width, d.Height = l.Width, l.Height
	d.Chips = v.Summary.Chips()

	x0, x1 := l.Left(), l.Right()
	top, bottom := l.PadTop, l.Bottom()
	for _, r := range p.Rows {
		d.Axes = append(d.Axes, htmlSegment{X1: x0, Y1: r.Bottom(), X2: x1, Y2: r.Bottom()})
		labels := make([]string, 0, len(r.Scales))
		for _, s := range r.Scales {
			labels = append(labels, s.Axis.Spec().Label)
		}
		d.Labels = append(d.Labels, htmlText{X: 8, Y: r.Top + 12, Text: strings.Join(labels, " / ")})
	}
	d.Axes = append(d.Axes, htmlSegment{X1: x0, Y1: top, X2: x0, Y2: bottom})

	d.Ticks = p.Ticks
	d.TickTop = bottom
	d.TickY = l.Height - 16
	d.Now = p.Now
	d.NowTop, d.NowBottom = top, bottom

	d.Data = scriptData{
		XMin:  p.XMin.UnixMilli(),
		XMax:  p.XMax.UnixMilli(),
		Left:  x0,
		Right: x1,
		Width: l.Width,
		Zone:  v.Config.TimeZone,
	}
	for _, line := range p.Lines {
		var points strings.Builder
		for i, px := range line.Pixels {
			if i > 0 {
				points.WriteByte(' ')
			}
			fmt.Fprintf(&points, "%.1f,%.1f", px.X, px.Y)
		}
		d.Lines = append(d.Lines, htmlLine{
			Channel: string(line.Channel),
			Label:   line.Style.Label,
			Color:   line.Style.Color,
			Width:   line.Style.Width,
			Dashed:  line.Style.Dashed,
			Points:  points.String(),
		})

		ss := scriptSeries{
			Channel: string(line.Channel),
			Label:   line.Style.Label,
			Points:  make([][2]float64, 0, len(line.Points)),
		}
		for _, pt := range line.Points {
			ss.Points = append(ss.Points, [2]float64{float64(pt.Timestamp.UnixMilli()), pt.Value})
		}
		d.Data.Series = append(d.Data.Series, ss)
	}
	return d
}
