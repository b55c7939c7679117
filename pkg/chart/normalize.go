package chart

import (
	"math"
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// minSpan is the smallest domain span MapToPixel divides by.
const minSpan = 1e-9

// RangeOf returns the padded value bounds across all of the given series. If
// there are no points at all the fallback bounds are returned unchanged. A
// flat series is widened by 1 on each side before padding.
func RangeOf(fallbackMin, fallbackMax, paddingPct float64, series ...[]types.TimeSeriesPoint) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, p := range s {
			if !types.IsFinite(p.Value) {
				continue
			}
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return fallbackMin, fallbackMax
	}
	if lo == hi {
		lo--
		hi++
	}
	span := hi - lo
	return lo - span*paddingPct, hi + span*paddingPct
}

// MapToPixel maps value from [domainMin, domainMax] onto
// [pixelOrigin, pixelOrigin+pixelExtent]. A negative extent flips the axis,
// which is what y axes want.
func MapToPixel(value, domainMin, domainMax, pixelOrigin, pixelExtent float64) float64 {
	span := math.Max(minSpan, domainMax-domainMin)
	return pixelOrigin + (value-domainMin)/span*pixelExtent
}

// TimeDomain returns the earliest and latest timestamps across all of the
// given series. ok is false if every series is empty.
func TimeDomain(series ...[]types.TimeSeriesPoint) (minT, maxT time.Time, ok bool) {
	for _, s := range series {
		for _, p := range s {
			if !ok {
				minT, maxT, ok = p.Timestamp, p.Timestamp, true
				continue
			}
			if p.Timestamp.Before(minT) {
				minT = p.Timestamp
			}
			if p.Timestamp.After(maxT) {
				maxT = p.Timestamp
			}
		}
	}
	return minT, maxT, ok
}

// Nearest returns the point whose timestamp is closest to t. Ties go to the
// point seen first. ok is false for an empty series.
func Nearest(series []types.TimeSeriesPoint, t time.Time) (types.TimeSeriesPoint, bool) {
	if len(series) == 0 {
		return types.TimeSeriesPoint{}, false
	}
	best := series[0]
	bestDist := absDuration(series[0].Timestamp.Sub(t))
	for _, p := range series[1:] {
		if d := absDuration(p.Timestamp.Sub(t)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// unixMilli is the x domain unit.
func unixMilli(t time.Time) float64 {
	return float64(t.UnixMilli())
}
