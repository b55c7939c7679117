package card

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteECharts writes the view as an interactive ECharts page with one line
// chart per layout row. Placeholder views are written as HTML.
func WriteECharts(w io.Writer, v View) error {
	if v.Kind != ViewChart {
		return WriteHTML(w, v)
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s: %s", Header, v.Title)
	page.SetLayout(components.PageFlexLayout)

	p := v.Plot
	for ri, row := range p.Rows {
		line := charts.NewLine()
		names := make([]string, 0, len(row.Scales))
		for _, s := range row.Scales {
			names = append(names, s.Axis.Spec().Label)
		}
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{
				Width:  fmt.Sprintf("%.0fpx", p.Layout.Width),
				Height: fmt.Sprintf("%.0fpx", row.Height+160),
			}),
			charts.WithTitleOpts(opts.Title{
				Title: strings.Join(names, " / "),
			}),
			charts.WithXAxisOpts(opts.XAxis{
				Type: "time",
				Min:  p.XMin.UnixMilli(),
				Max:  p.XMax.UnixMilli(),
			}),
			charts.WithYAxisOpts(opts.YAxis{
				Name: row.Scales[0].Axis.Spec().Unit,
				Min:  row.Scales[0].Min,
				Max:  row.Scales[0].Max,
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: true, Top: "bottom"}),
		)
		for _, s := range row.Scales[1:] {
			line.ExtendYAxis(opts.YAxis{
				Name: s.Axis.Spec().Unit,
				Min:  s.Min,
				Max:  s.Max,
			})
		}

		for _, l := range p.Lines {
			if l.Row != ri {
				continue
			}
			yIndex := 0
			for si, s := range row.Scales {
				if s.Axis == l.Scale.Axis {
					yIndex = si
				}
			}
			data := make([]opts.LineData, 0, len(l.Points))
			for _, pt := range l.Points {
				data = append(data, opts.LineData{Value: []interface{}{pt.Timestamp.UnixMilli(), pt.Value}})
			}
			style := opts.LineStyle{
				Color: l.Style.Color,
				Width: float32(l.Style.Width),
			}
			if l.Style.Dashed {
				style.Type = "dashed"
			}
			line.AddSeries(l.Style.Label, data,
				charts.WithLineStyleOpts(style),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: l.Style.Color}),
				charts.WithLineChartOpts(opts.LineChart{YAxisIndex: yIndex}),
			)
		}
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("error rendering echarts page: %w", err)
	}
	return nil
}
