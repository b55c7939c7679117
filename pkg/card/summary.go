package card

import (
	"fmt"
	"strconv"

	"github.com/nodeenergy/nodeenergy/pkg/projection"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// Summary holds the headline numbers shown above the chart.
type Summary struct {
	LatestSOC     float64  `json:"latestSoc"`
	LoadW         float64  `json:"loadW"`
	SolarPeakW    float64  `json:"solarPeakW"`
	AvgNetW       float64  `json:"avgNetW"`
	Cells         int      `json:"cells"`
	StartHour     *float64 `json:"startHour,omitempty"`
	WeatherEntity string   `json:"weatherEntity,omitempty"`
	NoSunDays     *float64 `json:"noSunDays,omitempty"`
}

// Chip is a labeled value in the summary row.
type Chip struct {
	Label string
	Value string
	Wide  bool
}

func summarize(st types.EntityState, cfg types.CardConfig, m types.EnergyModel, startSOC float64) Summary {
	s := Summary{
		LatestSOC:  startSOC,
		LoadW:      m.LoadW,
		SolarPeakW: m.SolarPeakW,
		Cells:      cfg.Cells,
	}
	if st.Attributes.Model != nil {
		s.AvgNetW = st.Attributes.Model.AvgNetWObserved.Or(0)
	}
	if meta := st.Attributes.Meta; meta != nil {
		if meta.StartHour != nil && meta.StartHour.Valid() {
			h := float64(*meta.StartHour)
			s.StartHour = &h
		}
		s.WeatherEntity = meta.WeatherEntity
	}
	if days, ok := projection.NoSunRuntimeDays(startSOC, m); ok {
		s.NoSunDays = &days
	}
	return s
}

// Chips formats the summary for display.
func (s Summary) Chips() []Chip {
	startHour := "-"
	if s.StartHour != nil {
		startHour = strconv.FormatFloat(*s.StartHour, 'f', -1, 64)
	}
	weather := s.WeatherEntity
	if weather == "" {
		weather = "(none)"
	}
	noSun := "-"
	if s.NoSunDays != nil {
		noSun = fmt.Sprintf("%.1f d", *s.NoSunDays)
	}
	return []Chip{
		{Label: "Latest", Value: fmt.Sprintf("%.1f%%", s.LatestSOC)},
		{Label: "Load", Value: fmt.Sprintf("%.2f W", s.LoadW)},
		{Label: "Solar Peak", Value: fmt.Sprintf("%.2f W", s.SolarPeakW)},
		{Label: "Avg Net", Value: fmt.Sprintf("%.2f W", s.AvgNetW)},
		{Label: "Cells", Value: strconv.Itoa(s.Cells)},
		{Label: "Start Hour", Value: startHour + ":00"},
		{Label: "No Sun", Value: noSun},
		{Label: "Weather Entity", Value: weather, Wide: true},
	}
}
