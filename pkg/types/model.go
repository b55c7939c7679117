package types

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// ForecastStep is the fixed sample interval of the forecast arrays.
	ForecastStep = 10 * time.Minute

	// ForecastStepsPerHour is the number of forecast samples per hour.
	ForecastStepsPerHour = int(time.Hour / ForecastStep)
)

// ErrInvalidModel is returned when an EnergyModel can't describe a battery.
var ErrInvalidModel = errors.New("invalid energy model")

// TimeSeriesPoint is a single sample of a series.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"t"`
	Value     float64   `json:"v"`
}

// CleanSeries drops points with a zero timestamp or a non-finite value, sorts
// the rest by timestamp and drops duplicate timestamps (first one wins). The
// input slice is not modified.
func CleanSeries(in []TimeSeriesPoint) []TimeSeriesPoint {
	out := make([]TimeSeriesPoint, 0, len(in))
	for _, p := range in {
		if p.Timestamp.IsZero() || !IsFinite(p.Value) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	deduped := out[:0]
	for i, p := range out {
		if i > 0 && p.Timestamp.Equal(deduped[len(deduped)-1].Timestamp) {
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// ForecastInput holds the index-aligned forecast arrays. Values that were
// missing or non-finite in the snapshot are NaN; consumers apply their own
// per-array defaults.
type ForecastInput struct {
	Times          []time.Time
	WeatherFactor  []float64
	SolarProxy     []float64
	SolarElevation []float64
}

// At returns arr[i], or def if i is out of range or the value isn't finite.
func At(arr []float64, i int, def float64) float64 {
	if i < 0 || i >= len(arr) || !IsFinite(arr[i]) {
		return def
	}
	return arr[i]
}

// EnergyModel describes the battery bank and its constant load and solar peak.
type EnergyModel struct {
	LoadW          float64 `json:"loadW"`
	SolarPeakW     float64 `json:"solarPeakW"`
	CellCount      int     `json:"cellCount"`
	CellCapacityWh float64 `json:"cellCapacityWh"`
}

// CellCapacityWh returns the energy of a single cell in watt-hours.
func CellCapacityWh(cellMAh, cellV float64) float64 {
	return cellMAh / 1000 * cellV
}

// CapacityWh returns the usable energy of the whole bank.
func (m EnergyModel) CapacityWh() float64 {
	return float64(m.CellCount) * m.CellCapacityWh
}

// Validate returns an error wrapping ErrInvalidModel if the bank has no
// usable capacity or the powers aren't finite.
func (m EnergyModel) Validate() error {
	if m.CellCount < 1 {
		return fmt.Errorf("%w: cell count must be at least 1, got %d", ErrInvalidModel, m.CellCount)
	}
	if !IsFinite(m.CellCapacityWh) || m.CellCapacityWh <= 0 {
		return fmt.Errorf("%w: cell capacity must be positive, got %v Wh", ErrInvalidModel, m.CellCapacityWh)
	}
	if !IsFinite(m.LoadW) || !IsFinite(m.SolarPeakW) {
		return fmt.Errorf("%w: load and solar peak must be finite", ErrInvalidModel)
	}
	return nil
}

// ProjectionResult holds the two projected SOC trajectories. Both have the
// same length and start with the anchor point when non-empty.
type ProjectionResult struct {
	WeatherAdjusted []TimeSeriesPoint `json:"weatherAdjusted"`
	ClearSky        []TimeSeriesPoint `json:"clearSky"`
}
