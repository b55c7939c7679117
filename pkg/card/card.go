package card

import (
	"fmt"
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/chart"
	"github.com/nodeenergy/nodeenergy/pkg/projection"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// Header is the title of every card.
const Header = "Node Energy"

// Kind is the terminal state of a render.
type Kind int

const (
	ViewChart Kind = iota
	ViewNotFound
	ViewNoData
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case ViewChart:
		return "chart"
	case ViewNotFound:
		return "not_found"
	case ViewNoData:
		return "no_data"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Input is everything a render depends on. State is nil when the entity
// doesn't exist.
type Input struct {
	Config types.CardConfig
	State  *types.EntityState
}

// View is the result of a render. Placeholder views only carry a Message.
type View struct {
	Kind    Kind
	Config  types.CardConfig
	Title   string
	Message string

	Summary    Summary
	Model      types.EnergyModel
	Projection types.ProjectionResult
	Plot       chart.Plot

	// Err is set if the projection couldn't run. The view still renders the
	// history it has.
	Err error
}

// Build renders the input into a View. It is pure: the same input always
// yields the same view, and it never fails. The config is expected to have
// passed Validate already.
func Build(in Input) View {
	cfg := in.Config.Normalize()
	if in.State == nil {
		return View{
			Kind:    ViewNotFound,
			Config:  cfg,
			Title:   Header,
			Message: fmt.Sprintf("Entity not found: %s", cfg.Entity),
		}
	}
	st := *in.State

	fin := st.ForecastInput()
	model := cfg.EnergyModel(st.Attributes)
	startSOC := st.StartSOC()
	steps := projection.HorizonSteps(cfg.Days, len(fin.Times))

	v := View{
		Kind:    ViewChart,
		Config:  cfg,
		Title:   st.Name(),
		Model:   model,
		Summary: summarize(st, cfg, model, startSOC),
	}

	res, err := projection.Project(fin, model, startSOC, steps)
	if err != nil {
		v.Err = fmt.Errorf("error projecting %s: %w", cfg.Entity, err)
		res = types.ProjectionResult{}
	}
	v.Projection = res

	layout, err := chart.LayoutByName(cfg.Layout)
	if err != nil {
		layout = chart.Stacked
	}
	v.Plot = chart.Compose(layout, chart.Input{
		Series:   collectSeries(st, fin, res, steps),
		Now:      boundary(st.HistorySOCSeries(), res),
		Location: cfg.Location(),
	})
	// the layout may drop the only channels that had data
	if v.Plot.Empty() {
		v.Kind = ViewNoData
		v.Message = "No history/forecast data yet."
	}
	return v
}

// collectSeries builds every channel from the snapshot and the projection.
func collectSeries(st types.EntityState, fin types.ForecastInput, res types.ProjectionResult, steps int) []chart.Series {
	hist := st.HistorySOCSeries()

	soc := make([]types.TimeSeriesPoint, 0, len(hist)+len(res.WeatherAdjusted))
	soc = append(soc, hist...)
	if len(res.WeatherAdjusted) > 1 {
		// history already leads up to the anchor
		soc = append(soc, res.WeatherAdjusted[1:]...)
	}

	n := min(steps+1, len(fin.Times))
	sunForecast := make([]types.TimeSeriesPoint, 0, n)
	for i := 0; i < n; i++ {
		sunForecast = append(sunForecast, types.TimeSeriesPoint{
			Timestamp: fin.Times[i],
			Value:     types.At(fin.SolarElevation, i, 0),
		})
	}

	channel := st.IntervalChannel
	return []chart.Series{
		{Channel: chart.ChannelSOC, Points: soc},
		{Channel: chart.ChannelSOCClear, Points: res.ClearSky},
		{Channel: chart.ChannelSunHistory, Points: channel(func(r types.IntervalRecord) types.Number { return r.SunElevationDeg })},
		{Channel: chart.ChannelSunForecast, Points: types.CleanSeries(sunForecast)},
		{Channel: chart.ChannelPowerObserved, Points: channel(func(r types.IntervalRecord) types.Number { return r.NetPowerObservedW })},
		{Channel: chart.ChannelPowerModeled, Points: channel(func(r types.IntervalRecord) types.Number { return r.NetPowerModeledW })},
		{Channel: chart.ChannelProductionW, Points: channel(func(r types.IntervalRecord) types.Number { return r.ProductionWeatherW })},
		{Channel: chart.ChannelProductionClear, Points: channel(func(r types.IntervalRecord) types.Number { return r.ProductionClearW })},
		{Channel: chart.ChannelConsumption, Points: channel(func(r types.IntervalRecord) types.Number { return r.ConsumptionW })},
	}
}

// boundary is the timestamp of the last history sample, or the forecast
// anchor without history.
func boundary(hist []types.TimeSeriesPoint, res types.ProjectionResult) time.Time {
	if len(hist) > 0 {
		return hist[len(hist)-1].Timestamp
	}
	if len(res.WeatherAdjusted) > 0 {
		return res.WeatherAdjusted[0].Timestamp
	}
	return time.Time{}
}
