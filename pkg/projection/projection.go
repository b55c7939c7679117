package projection

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// StepHours is the integration step in hours.
const StepHours = float64(types.ForecastStep) / float64(time.Hour)

var (
	// ErrInvalidModel is returned when the battery bank has no usable capacity.
	ErrInvalidModel = types.ErrInvalidModel

	// ErrInvalidStart is returned when the starting SOC isn't a number.
	ErrInvalidStart = errors.New("invalid start soc")
)

// HorizonSteps converts a number of days into a number of forecast steps,
// bounded by the available forecast samples. It never returns less than 2.
func HorizonSteps(days int, timesLen int) int {
	requested := days * 24 * types.ForecastStepsPerHour
	return max(2, min(timesLen-1, requested))
}

// Project runs the energy balance over the forecast and returns the
// weather-adjusted and clear-sky SOC trajectories. Both start at Times[0] with
// startSOC and have one point per simulated step.
func Project(in types.ForecastInput, m types.EnergyModel, startSOC float64, horizonSteps int) (types.ProjectionResult, error) {
	if err := m.Validate(); err != nil {
		return types.ProjectionResult{}, err
	}
	if !types.IsFinite(startSOC) {
		return types.ProjectionResult{}, fmt.Errorf("%w: %v", ErrInvalidStart, startSOC)
	}
	if len(in.Times) == 0 {
		return types.ProjectionResult{
			WeatherAdjusted: []types.TimeSeriesPoint{},
			ClearSky:        []types.TimeSeriesPoint{},
		}, nil
	}

	steps := boundSteps(horizonSteps, len(in.Times))
	weather := simulate(in.Times, steps, startSOC, m, func(i int) float64 {
		return m.SolarPeakW * solarProxyAt(in, i) * weatherFactorAt(in, i)
	})
	clear := simulate(in.Times, steps, startSOC, m, func(i int) float64 {
		return m.SolarPeakW * solarProxyAt(in, i)
	})
	return types.ProjectionResult{
		WeatherAdjusted: weather,
		ClearSky:        clear,
	}, nil
}

// NoSun projects the SOC with no solar production at all, which bounds how
// long the bank lasts on the load alone.
func NoSun(in types.ForecastInput, m types.EnergyModel, startSOC float64, horizonSteps int) ([]types.TimeSeriesPoint, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !types.IsFinite(startSOC) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStart, startSOC)
	}
	if len(in.Times) == 0 {
		return []types.TimeSeriesPoint{}, nil
	}
	return simulate(in.Times, boundSteps(horizonSteps, len(in.Times)), startSOC, m, func(int) float64 {
		return 0
	}), nil
}

// NoSunRuntimeDays returns how many days the remaining energy lasts at the
// model's load with no solar production. It returns false if there is no load.
func NoSunRuntimeDays(soc float64, m types.EnergyModel) (float64, bool) {
	if m.LoadW <= 0 || !types.IsFinite(soc) {
		return 0, false
	}
	remainingWh := clampSOC(soc) / 100 * m.CapacityWh()
	return remainingWh / m.LoadW / 24, true
}

// boundSteps applies the same bounds as HorizonSteps: at least 2 steps, never
// past the last forecast sample.
func boundSteps(horizonSteps, timesLen int) int {
	return max(0, min(max(2, horizonSteps), timesLen-1))
}

// simulate integrates the SOC with explicit Euler steps. Each call owns its
// running SOC so variants never share state.
func simulate(times []time.Time, steps int, startSOC float64, m types.EnergyModel, produced func(i int) float64) []types.TimeSeriesPoint {
	capacityWh := m.CapacityWh()
	soc := clampSOC(startSOC)
	out := make([]types.TimeSeriesPoint, 0, steps+1)
	out = append(out, types.TimeSeriesPoint{Timestamp: times[0], Value: soc})
	for i := 1; i <= steps; i++ {
		netW := produced(i) - m.LoadW
		delta := netW * StepHours / capacityWh * 100
		// clamp every step so an overshoot never carries into the next one
		soc = clampSOC(soc + delta)
		out = append(out, types.TimeSeriesPoint{Timestamp: times[i], Value: soc})
	}
	return out
}

func solarProxyAt(in types.ForecastInput, i int) float64 {
	return types.At(in.SolarProxy, i, 0)
}

func weatherFactorAt(in types.ForecastInput, i int) float64 {
	return types.At(in.WeatherFactor, i, 1)
}

func clampSOC(soc float64) float64 {
	return math.Max(0, math.Min(100, soc))
}
