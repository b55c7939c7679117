package card

import (
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/chart"
)

// TooltipRow is the value of one channel closest to the hovered time.
type TooltipRow struct {
	Channel   chart.Channel `json:"channel"`
	Label     string        `json:"label"`
	Value     float64       `json:"value"`
	Timestamp time.Time     `json:"timestamp"`
}

// Tooltip returns, for every drawn channel with data, the point nearest t.
// Placeholder views have no rows.
func (v View) Tooltip(t time.Time) []TooltipRow {
	if v.Kind != ViewChart {
		return nil
	}
	rows := make([]TooltipRow, 0, len(v.Plot.Lines))
	for _, l := range v.Plot.Lines {
		p, ok := chart.Nearest(l.Points, t)
		if !ok {
			continue
		}
		rows = append(rows, TooltipRow{
			Channel:   l.Channel,
			Label:     l.Style.Label,
			Value:     p.Value,
			Timestamp: p.Timestamp,
		})
	}
	return rows
}
