package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// EntityState is a read-only snapshot of a node energy sensor as delivered by
// the host.
type EntityState struct {
	EntityID    string     `json:"entity_id"`
	State       Number     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastUpdated Timestamp  `json:"last_updated"`
}

// Attributes are the sensor attributes produced upstream.
type Attributes struct {
	FriendlyName string           `json:"friendly_name,omitempty"`
	Model        *ModelAttrs      `json:"model,omitempty"`
	Meta         *MetaAttrs       `json:"meta,omitempty"`
	Forecast     *ForecastAttrs   `json:"forecast,omitempty"`
	HistorySOC   []HistoryPoint   `json:"history_soc,omitempty"`
	Intervals    []IntervalRecord `json:"intervals,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. Other integrations reuse
// attribute names like forecast and model with different shapes, so a field
// that doesn't decode is dropped instead of failing the whole state. List
// entries that don't decode are dropped one by one.
func (a *Attributes) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = Attributes{}

	field := func(key string) (json.RawMessage, bool) {
		msg, ok := raw[key]
		if !ok || bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
			return nil, false
		}
		return msg, true
	}

	if msg, ok := field("friendly_name"); ok {
		var name string
		if json.Unmarshal(msg, &name) == nil {
			a.FriendlyName = name
		}
	}
	if msg, ok := field("model"); ok {
		var m ModelAttrs
		if json.Unmarshal(msg, &m) == nil {
			a.Model = &m
		}
	}
	if msg, ok := field("meta"); ok {
		var m MetaAttrs
		if json.Unmarshal(msg, &m) == nil {
			a.Meta = &m
		}
	}
	if msg, ok := field("forecast"); ok {
		var f ForecastAttrs
		if json.Unmarshal(msg, &f) == nil {
			a.Forecast = &f
		}
	}
	if msg, ok := field("history_soc"); ok {
		a.HistorySOC, _ = decodeEach[HistoryPoint](msg)
	}
	if msg, ok := field("intervals"); ok {
		a.Intervals, _ = decodeEach[IntervalRecord](msg)
	}
	return nil
}

// decodeEach decodes a JSON array, skipping entries that don't decode. It
// returns false if msg isn't an array.
func decodeEach[T any](msg json.RawMessage) ([]T, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return nil, false
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, true
}

// ModelAttrs is the fitted power model.
type ModelAttrs struct {
	LoadW           Number `json:"load_w"`
	SolarPeakW      Number `json:"solar_peak_w"`
	AvgNetWObserved Number `json:"avg_net_w_observed"`
}

// MetaAttrs describes the node configuration upstream.
type MetaAttrs struct {
	CellMAh       *Number `json:"cell_mah,omitempty"`
	CellV         *Number `json:"cell_v,omitempty"`
	StartHour     *Number `json:"start_hour,omitempty"`
	WeatherEntity string  `json:"weather_entity,omitempty"`
}

// ForecastAttrs holds the index-aligned forecast arrays.
type ForecastAttrs struct {
	Times         []Timestamp `json:"times"`
	WeatherFactor []Number    `json:"weather_factor"`
	SolarProxy    []Number    `json:"solar_proxy"`
	SolarElev     []Number    `json:"solar_elev"`
	LatestSOC     *Number     `json:"latest_soc,omitempty"`
}

// HistoryPoint is a historical SOC sample.
type HistoryPoint struct {
	T Timestamp `json:"t"`
	V Number    `json:"v"`
}

// UnmarshalJSON implements json.Unmarshaler so that a missing value is NaN
// rather than zero.
func (h *HistoryPoint) UnmarshalJSON(b []byte) error {
	type alias HistoryPoint
	a := alias{V: NaN()}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*h = HistoryPoint(a)
	return nil
}

// IntervalRecord is one historical sampling period summary. Any field may be
// missing, in which case it is NaN and only that channel drops the point.
type IntervalRecord struct {
	Timestamp          Timestamp `json:"tm"`
	SunElevationDeg    Number    `json:"sun_elev_deg"`
	NetPowerObservedW  Number    `json:"net_power_obs_w"`
	NetPowerModeledW   Number    `json:"net_power_model_w"`
	ProductionWeatherW Number    `json:"production_w"`
	ProductionClearW   Number    `json:"production_clear_w"`
	ConsumptionW       Number    `json:"consumption_w"`
}

// UnmarshalJSON implements json.Unmarshaler so that missing fields are NaN
// rather than zero.
func (r *IntervalRecord) UnmarshalJSON(b []byte) error {
	type alias IntervalRecord
	a := alias{
		SunElevationDeg:    NaN(),
		NetPowerObservedW:  NaN(),
		NetPowerModeledW:   NaN(),
		ProductionWeatherW: NaN(),
		ProductionClearW:   NaN(),
		ConsumptionW:       NaN(),
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*r = IntervalRecord(a)
	return nil
}

// IsNodeEnergy returns true if the state looks like a node energy sensor: a
// sensor entity carrying forecast, intervals and model attributes.
func (s EntityState) IsNodeEnergy() bool {
	return strings.HasPrefix(s.EntityID, "sensor.") &&
		s.Attributes.Forecast != nil &&
		s.Attributes.Intervals != nil &&
		s.Attributes.Model != nil
}

// Name returns the friendly name or the entity ID.
func (s EntityState) Name() string {
	if s.Attributes.FriendlyName != "" {
		return s.Attributes.FriendlyName
	}
	return s.EntityID
}

// StartSOC returns the forecast anchor SOC, falling back to the state value
// and then to 0.
func (s EntityState) StartSOC() float64 {
	if f := s.Attributes.Forecast; f != nil && f.LatestSOC != nil && f.LatestSOC.Valid() {
		return float64(*f.LatestSOC)
	}
	return s.State.Or(0)
}

// ForecastInput converts the forecast attributes into index-aligned arrays.
// Entries whose timestamp can't be parsed are dropped together with their
// aligned values so the arrays stay aligned.
func (s EntityState) ForecastInput() ForecastInput {
	f := s.Attributes.Forecast
	if f == nil {
		return ForecastInput{}
	}
	in := ForecastInput{
		Times:          make([]time.Time, 0, len(f.Times)),
		WeatherFactor:  make([]float64, 0, len(f.Times)),
		SolarProxy:     make([]float64, 0, len(f.Times)),
		SolarElevation: make([]float64, 0, len(f.Times)),
	}
	value := func(arr []Number, i int) float64 {
		if i >= len(arr) {
			return float64(NaN())
		}
		return float64(arr[i])
	}
	for i, t := range f.Times {
		if t.IsZero() {
			continue
		}
		in.Times = append(in.Times, t.Time)
		in.WeatherFactor = append(in.WeatherFactor, value(f.WeatherFactor, i))
		in.SolarProxy = append(in.SolarProxy, value(f.SolarProxy, i))
		in.SolarElevation = append(in.SolarElevation, value(f.SolarElev, i))
	}
	return in
}

// HistorySOCSeries returns the cleaned historical SOC series.
func (s EntityState) HistorySOCSeries() []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(s.Attributes.HistorySOC))
	for _, h := range s.Attributes.HistorySOC {
		points = append(points, TimeSeriesPoint{Timestamp: h.T.Time, Value: float64(h.V)})
	}
	return CleanSeries(points)
}

// IntervalChannel extracts one channel from the interval records. Each channel
// is filtered independently.
func (s EntityState) IntervalChannel(field func(IntervalRecord) Number) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(s.Attributes.Intervals))
	for _, r := range s.Attributes.Intervals {
		points = append(points, TimeSeriesPoint{Timestamp: r.Timestamp.Time, Value: float64(field(r))})
	}
	return CleanSeries(points)
}
