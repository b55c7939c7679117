package types

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshot = `{
	"entity_id": "sensor.node_energy",
	"state": "57.5",
	"attributes": {
		"friendly_name": "Garden Node",
		"model": {"load_w": 1.5, "solar_peak_w": "6.25", "avg_net_w_observed": null},
		"meta": {"cell_mah": 3000, "cell_v": 3.6, "start_hour": 16, "weather_entity": "weather.home"},
		"forecast": {
			"times": ["2025-06-01T12:00:00+00:00", "not a time", "2025-06-01T12:20:00+00:00"],
			"weather_factor": [0.5, 0.6],
			"solar_proxy": [0.1, 0.2, "unknown"],
			"solar_elev": [30, 31, 32],
			"latest_soc": 61.25
		},
		"history_soc": [
			{"t": "2025-06-01T11:50:00+00:00", "v": 60},
			{"t": "2025-06-01T11:40:00+00:00", "v": "59"},
			{"t": "2025-06-01T11:30:00+00:00"},
			{"t": "2025-06-01T11:40:00+00:00", "v": 12}
		],
		"intervals": [
			{"tm": "2025-06-01T11:00:00+00:00", "sun_elev_deg": 20, "net_power_obs_w": -1.2, "production_w": 2},
			{"tm": "2025-06-01T11:10:00+00:00", "net_power_obs_w": null, "production_w": 3, "consumption_w": 1.5}
		]
	}
}`

func decodeTestSnapshot(t *testing.T) EntityState {
	t.Helper()
	var st EntityState
	require.NoError(t, json.Unmarshal([]byte(testSnapshot), &st))
	return st
}

func TestEntityStateDecode(t *testing.T) {
	st := decodeTestSnapshot(t)

	assert.Equal(t, "sensor.node_energy", st.EntityID)
	assert.Equal(t, "Garden Node", st.Name())
	assert.True(t, st.IsNodeEnergy())
	assert.InDelta(t, 57.5, float64(st.State), 1e-9)
	assert.InDelta(t, 6.25, float64(st.Attributes.Model.SolarPeakW), 1e-9)
	assert.False(t, st.Attributes.Model.AvgNetWObserved.Valid())
	assert.Equal(t, "weather.home", st.Attributes.Meta.WeatherEntity)
	assert.InDelta(t, 16, Opt(st.Attributes.Meta.StartHour, -1), 1e-9)

	t.Run("StartSOC prefers latest_soc", func(t *testing.T) {
		assert.InDelta(t, 61.25, st.StartSOC(), 1e-9)

		noAnchor := st
		noAnchor.Attributes.Forecast = &ForecastAttrs{}
		assert.InDelta(t, 57.5, noAnchor.StartSOC(), 1e-9)

		noAnchor.State = NaN()
		assert.Equal(t, 0.0, noAnchor.StartSOC())
	})

	t.Run("ForecastInput drops bad timestamps but stays aligned", func(t *testing.T) {
		in := st.ForecastInput()
		require.Len(t, in.Times, 2)
		require.Len(t, in.WeatherFactor, 2)
		require.Len(t, in.SolarProxy, 2)
		require.Len(t, in.SolarElevation, 2)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 20, 0, 0, time.UTC), in.Times[1].UTC())
		assert.InDelta(t, 0.5, in.WeatherFactor[0], 1e-9)
		// weather_factor only has two entries, index 2 is missing
		assert.True(t, math.IsNaN(in.WeatherFactor[1]))
		assert.True(t, math.IsNaN(in.SolarProxy[1]))
		assert.InDelta(t, 32, in.SolarElevation[1], 1e-9)
	})

	t.Run("HistorySOCSeries filters, sorts and dedups", func(t *testing.T) {
		hist := st.HistorySOCSeries()
		require.Len(t, hist, 2)
		assert.InDelta(t, 59, hist[0].Value, 1e-9)
		assert.InDelta(t, 60, hist[1].Value, 1e-9)
	})

	t.Run("IntervalChannel filters each channel independently", func(t *testing.T) {
		obs := st.IntervalChannel(func(r IntervalRecord) Number { return r.NetPowerObservedW })
		prod := st.IntervalChannel(func(r IntervalRecord) Number { return r.ProductionWeatherW })
		cons := st.IntervalChannel(func(r IntervalRecord) Number { return r.ConsumptionW })
		model := st.IntervalChannel(func(r IntervalRecord) Number { return r.NetPowerModeledW })
		assert.Len(t, obs, 1)
		assert.Len(t, prod, 2)
		assert.Len(t, cons, 1)
		assert.Empty(t, model)
	})
}

func TestAttributesDecodeMistypedFields(t *testing.T) {
	t.Run("foreign shapes are dropped", func(t *testing.T) {
		var st EntityState
		require.NoError(t, json.Unmarshal([]byte(`{
			"entity_id": "weather.home",
			"state": "sunny",
			"attributes": {
				"friendly_name": "Home",
				"forecast": [{"condition": "sunny", "temperature": 21}],
				"model": "WX-200",
				"meta": null,
				"intervals": {"unit": "min"}
			}
		}`), &st))
		assert.Equal(t, "Home", st.Name())
		assert.Nil(t, st.Attributes.Forecast)
		assert.Nil(t, st.Attributes.Model)
		assert.Nil(t, st.Attributes.Meta)
		assert.Nil(t, st.Attributes.Intervals)
		assert.False(t, st.IsNodeEnergy())
		assert.False(t, st.State.Valid())
	})

	t.Run("bad list entries are dropped one by one", func(t *testing.T) {
		var attrs Attributes
		require.NoError(t, json.Unmarshal([]byte(`{
			"friendly_name": 12,
			"model": {"load_w": 2},
			"history_soc": [{"t": "2025-06-01T11:50:00Z", "v": 60}, "oops", 7],
			"intervals": [[1, 2], {"tm": "2025-06-01T11:00:00Z", "consumption_w": 1.5}]
		}`), &attrs))
		assert.Empty(t, attrs.FriendlyName)
		require.NotNil(t, attrs.Model)
		assert.InDelta(t, 2, float64(attrs.Model.LoadW), 1e-9)
		require.Len(t, attrs.HistorySOC, 1)
		assert.InDelta(t, 60, float64(attrs.HistorySOC[0].V), 1e-9)
		require.Len(t, attrs.Intervals, 1)
		assert.InDelta(t, 1.5, float64(attrs.Intervals[0].ConsumptionW), 1e-9)
		assert.False(t, attrs.Intervals[0].NetPowerObservedW.Valid())
	})

	t.Run("empty intervals still mark a node", func(t *testing.T) {
		var attrs Attributes
		require.NoError(t, json.Unmarshal([]byte(`{"intervals": []}`), &attrs))
		assert.NotNil(t, attrs.Intervals)
		assert.Empty(t, attrs.Intervals)
	})
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
		want  float64
	}{
		{`12.5`, true, 12.5},
		{`"7"`, true, 7},
		{`" 3.25 "`, true, 3.25},
		{`null`, false, 0},
		{`"unavailable"`, false, 0},
		{`"NaN"`, false, 0},
		{`"+Inf"`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			assert.Equal(t, tt.valid, n.Valid())
			if tt.valid {
				assert.InDelta(t, tt.want, float64(n), 1e-9)
			}
			assert.Equal(t, tt.want, n.Or(0))
		})
	}

	t.Run("Marshal non-finite as null", func(t *testing.T) {
		b, err := json.Marshal(struct {
			A Number `json:"a"`
			B Number `json:"b"`
		}{A: NaN(), B: 2})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":null,"b":2}`, string(b))
	})

	t.Run("Opt handles nil", func(t *testing.T) {
		assert.Equal(t, 4.0, Opt(nil, 4))
	})
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{
		"2025-06-01T12:00:00Z",
		"2025-06-01T12:00:00+00:00",
		"2025-06-01T12:00:00.123456+00:00",
		"2025-06-01T12:00:00",
		"2025-06-01 12:00:00+00:00",
	} {
		got, ok := ParseTimestamp(s)
		assert.True(t, ok, s)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), got.UTC().Truncate(time.Second), s)
	}
	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)
	_, ok = ParseTimestamp("")
	assert.False(t, ok)
}

func TestCleanSeries(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	in := []TimeSeriesPoint{
		{Timestamp: t0.Add(20 * time.Minute), Value: 3},
		{Timestamp: t0, Value: 1},
		{Timestamp: t0.Add(10 * time.Minute), Value: math.Inf(1)},
		{Timestamp: time.Time{}, Value: 5},
		{Timestamp: t0, Value: 9},
	}
	out := CleanSeries(in)
	require.Len(t, out, 2)
	assert.Equal(t, 1.0, out[0].Value)
	assert.Equal(t, 3.0, out[1].Value)
	// input untouched
	assert.Equal(t, 3.0, in[0].Value)
}
