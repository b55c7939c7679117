package chart

import (
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// Axis identifies a value scale.
type Axis int

const (
	AxisSOC Axis = iota
	AxisSun
	AxisPower
)

// AxisSpec holds the range policy and label of an Axis.
type AxisSpec struct {
	Label       string
	Unit        string
	FallbackMin float64
	FallbackMax float64
	PaddingPct  float64
	// Fixed axes always use the fallback bounds.
	Fixed bool
}

var axisSpecs = map[Axis]AxisSpec{
	AxisSOC:   {Label: "SOC", Unit: "%", FallbackMin: 0, FallbackMax: 100, Fixed: true},
	AxisSun:   {Label: "Sun °", Unit: "°", FallbackMin: -10, FallbackMax: 30, PaddingPct: 0.08},
	AxisPower: {Label: "Power W", Unit: "W", FallbackMin: -1, FallbackMax: 1, PaddingPct: 0.12},
}

// Spec returns the range policy of the axis.
func (a Axis) Spec() AxisSpec {
	return axisSpecs[a]
}

// Channel is the stable key of a plotted series. It is also the CSS class and
// the legend target in the HTML output.
type Channel string

const (
	ChannelSOC             Channel = "soc"
	ChannelSOCClear        Channel = "projc"
	ChannelSunHistory      Channel = "sunh"
	ChannelSunForecast     Channel = "sunf"
	ChannelPowerObserved   Channel = "pobs"
	ChannelPowerModeled    Channel = "pmodel"
	ChannelProductionW     Channel = "pprodw"
	ChannelProductionClear Channel = "pprodc"
	ChannelConsumption     Channel = "pcons"
)

// Channels lists every channel in drawing and legend order.
var Channels = []Channel{
	ChannelSOC,
	ChannelSOCClear,
	ChannelSunHistory,
	ChannelSunForecast,
	ChannelPowerObserved,
	ChannelPowerModeled,
	ChannelProductionW,
	ChannelProductionClear,
	ChannelConsumption,
}

// Style is how a channel is drawn.
type Style struct {
	Label  string
	Axis   Axis
	Color  string
	Width  float64
	Dashed bool
}

var styles = map[Channel]Style{
	ChannelSOC:             {Label: "SOC (history + projection)", Axis: AxisSOC, Color: "#17a589", Width: 2.8},
	ChannelSOCClear:        {Label: "SOC projection (clear)", Axis: AxisSOC, Color: "#17a589", Width: 1.6, Dashed: true},
	ChannelSunHistory:      {Label: "Sun elevation (history)", Axis: AxisSun, Color: "#b45309", Width: 2.1},
	ChannelSunForecast:     {Label: "Sun elevation (forecast)", Axis: AxisSun, Color: "#f59e0b", Width: 1.7, Dashed: true},
	ChannelPowerObserved:   {Label: "Observed net W", Axis: AxisPower, Color: "#475569", Width: 1.5},
	ChannelPowerModeled:    {Label: "Modeled net W", Axis: AxisPower, Color: "#0f766e", Width: 1.6},
	ChannelProductionW:     {Label: "Production W (weather)", Axis: AxisPower, Color: "#d97706", Width: 1.6},
	ChannelProductionClear: {Label: "Production W (clear)", Axis: AxisPower, Color: "#94a3b8", Width: 1.4, Dashed: true},
	ChannelConsumption:     {Label: "Consumption W", Axis: AxisPower, Color: "#b91c1c", Width: 1.6},
}

// Style returns how the channel is drawn.
func (c Channel) Style() Style {
	return styles[c]
}

// Series is a cleaned series tagged with its channel.
type Series struct {
	Channel Channel
	Points  []types.TimeSeriesPoint
}
