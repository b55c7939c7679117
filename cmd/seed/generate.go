package main

import (
	"math"
	"math/rand"
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// node describes the synthetic node being generated.
type node struct {
	Entity        string
	Name          string
	LoadW         float64
	SolarPeakW    float64
	Cells         int
	CellMAh       float64
	CellV         float64
	WeatherEntity string
	HistoryHours  int
	ForecastDays  int
	StartSOC      float64
}

// peak sun elevation of the synthetic day, in degrees
const peakElevation = 55.0

// sunElevation approximates the elevation of the sun over a day that peaks at
// local noon.
func sunElevation(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	return peakElevation * math.Sin(2*math.Pi*(hour-6)/24)
}

// solarProxy is the fraction of the peak production available at a sun
// elevation.
func solarProxy(elev float64) float64 {
	if elev <= 0 {
		return 0
	}
	return math.Sin(elev*math.Pi/180) / math.Sin(peakElevation*math.Pi/180)
}

// weather is a bounded random walk of the cloud attenuation factor.
type weather struct {
	rng    *rand.Rand
	factor float64
}

func (w *weather) next() float64 {
	w.factor += (w.rng.Float64() - 0.5) * 0.1
	w.factor = math.Max(0.2, math.Min(1, w.factor))
	return w.factor
}

func num(v float64) types.Number {
	return types.Number(math.Round(v*1000) / 1000)
}

func numPtr(v float64) *types.Number {
	n := num(v)
	return &n
}

// generate builds a snapshot ending at now: history and intervals for the
// last n.HistoryHours, and a forecast starting at now.
func generate(n node, now time.Time, rng *rand.Rand) types.EntityState {
	step := types.ForecastStep
	stepHours := step.Hours()
	capacityWh := float64(n.Cells) * types.CellCapacityWh(n.CellMAh, n.CellV)
	now = now.Truncate(step)
	w := &weather{rng: rng, factor: 0.8}

	soc := n.StartSOC
	var history []types.HistoryPoint
	var intervals []types.IntervalRecord
	var netSum float64
	start := now.Add(-time.Duration(n.HistoryHours) * time.Hour)
	for t := start; t.Before(now); t = t.Add(step) {
		elev := sunElevation(t)
		clear := n.SolarPeakW * solarProxy(elev)
		produced := clear * w.next()
		consumed := n.LoadW * (0.9 + rng.Float64()*0.2)
		net := produced - consumed
		netSum += net

		soc = math.Max(0, math.Min(100, soc+net*stepHours/capacityWh*100))
		history = append(history, types.HistoryPoint{T: types.Timestamp{Time: t}, V: num(soc)})
		intervals = append(intervals, types.IntervalRecord{
			Timestamp:          types.Timestamp{Time: t},
			SunElevationDeg:    num(elev),
			NetPowerObservedW:  num(net),
			NetPowerModeledW:   num(produced - n.LoadW),
			ProductionWeatherW: num(produced),
			ProductionClearW:   num(clear),
			ConsumptionW:       num(consumed),
		})
	}
	avgNet := 0.0
	if len(intervals) > 0 {
		avgNet = netSum / float64(len(intervals))
	}

	steps := n.ForecastDays*24*types.ForecastStepsPerHour + 1
	forecast := &types.ForecastAttrs{
		Times:         make([]types.Timestamp, 0, steps),
		WeatherFactor: make([]types.Number, 0, steps),
		SolarProxy:    make([]types.Number, 0, steps),
		SolarElev:     make([]types.Number, 0, steps),
		LatestSOC:     numPtr(soc),
	}
	for i := 0; i < steps; i++ {
		t := now.Add(time.Duration(i) * step)
		elev := sunElevation(t)
		forecast.Times = append(forecast.Times, types.Timestamp{Time: t})
		forecast.WeatherFactor = append(forecast.WeatherFactor, num(w.next()))
		forecast.SolarProxy = append(forecast.SolarProxy, num(solarProxy(elev)))
		forecast.SolarElev = append(forecast.SolarElev, num(elev))
	}

	return types.EntityState{
		EntityID: n.Entity,
		State:    num(soc),
		Attributes: types.Attributes{
			FriendlyName: n.Name,
			Model: &types.ModelAttrs{
				LoadW:           num(n.LoadW),
				SolarPeakW:      num(n.SolarPeakW),
				AvgNetWObserved: num(avgNet),
			},
			Meta: &types.MetaAttrs{
				CellMAh:       numPtr(n.CellMAh),
				CellV:         numPtr(n.CellV),
				StartHour:     numPtr(float64(start.Hour())),
				WeatherEntity: n.WeatherEntity,
			},
			Forecast:   forecast,
			HistorySOC: history,
			Intervals:  intervals,
		},
		LastUpdated: types.Timestamp{Time: now},
	}
}
