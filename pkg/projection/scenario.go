package projection

import (
	"fmt"
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// DefaultScenarioCells are the bank sizes compared when none are given.
var DefaultScenarioCells = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

// Scenario summarizes a projection for one bank size.
type Scenario struct {
	CellCount   int        `json:"cellCount"`
	CapacityWh  float64    `json:"capacityWh"`
	EndSOC      float64    `json:"endSoc"`
	MinSOC      float64    `json:"minSoc"`
	EndSOCClear float64    `json:"endSocClear"`
	MinSOCClear float64    `json:"minSocClear"`
	EmptyAt     *time.Time `json:"emptyAt,omitempty"`
}

// Scenarios projects both variants for every cell count in cellCounts, using
// base for everything but the cell count. Nil cellCounts means
// DefaultScenarioCells.
func Scenarios(in types.ForecastInput, base types.EnergyModel, startSOC float64, horizonSteps int, cellCounts []int) ([]Scenario, error) {
	if cellCounts == nil {
		cellCounts = DefaultScenarioCells
	}
	out := make([]Scenario, 0, len(cellCounts))
	for _, cells := range cellCounts {
		m := base
		m.CellCount = cells
		res, err := Project(in, m, startSOC, horizonSteps)
		if err != nil {
			return nil, fmt.Errorf("scenario with %d cells: %w", cells, err)
		}
		s := Scenario{
			CellCount:  cells,
			CapacityWh: m.CapacityWh(),
		}
		s.EndSOC, s.MinSOC = endAndMin(res.WeatherAdjusted)
		s.EndSOCClear, s.MinSOCClear = endAndMin(res.ClearSky)
		for _, p := range res.WeatherAdjusted {
			if p.Value <= 0 {
				ts := p.Timestamp
				s.EmptyAt = &ts
				break
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func endAndMin(points []types.TimeSeriesPoint) (float64, float64) {
	if len(points) == 0 {
		return 0, 0
	}
	minSOC := points[0].Value
	for _, p := range points[1:] {
		minSOC = min(minSOC, p.Value)
	}
	return points[len(points)-1].Value, minSOC
}
