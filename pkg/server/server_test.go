package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nodeenergy/nodeenergy/pkg/live"
	"github.com/nodeenergy/nodeenergy/pkg/projection"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/source/sourcemock"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

const gardenSnapshot = `{
	"entity_id": "sensor.garden_node",
	"state": 57,
	"attributes": {
		"friendly_name": "Garden Node",
		"model": {"load_w": 10, "solar_peak_w": 60},
		"meta": {"cell_mah": 3500, "cell_v": 3.7},
		"forecast": {
			"times": ["2025-06-01T12:00:00Z", "2025-06-01T12:10:00Z", "2025-06-01T12:20:00Z"],
			"weather_factor": [1, 1, 1],
			"solar_proxy": [0, 1, 1],
			"solar_elev": [30, 31, 32],
			"latest_soc": 50
		},
		"history_soc": [
			{"t": "2025-06-01T11:40:00Z", "v": 48},
			{"t": "2025-06-01T11:50:00Z", "v": 50}
		],
		"intervals": [
			{"tm": "2025-06-01T11:40:00Z", "sun_elev_deg": 28, "net_power_obs_w": -1.2, "consumption_w": 1.5},
			{"tm": "2025-06-01T11:50:00Z", "sun_elev_deg": 29, "net_power_obs_w": 0.4, "consumption_w": 1.5}
		]
	}
}`

func gardenState(t *testing.T) types.EntityState {
	t.Helper()
	var st types.EntityState
	require.NoError(t, json.Unmarshal([]byte(gardenSnapshot), &st))
	return st
}

func newTestServer(src source.Source) *Server {
	return &Server{
		source:     src,
		hub:        live.NewHub(),
		serverName: "nodeenergy",
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.setupHandler().ServeHTTP(w, req)
	return w
}

func TestHandleCard(t *testing.T) {
	mockSource := new(sourcemock.MockSource)
	mockSource.On("GetState", mock.Anything, "sensor.garden_node").Return(gardenState(t), nil)
	mockSource.On("GetState", mock.Anything, "sensor.missing").Return(types.EntityState{}, source.ErrEntityNotFound)
	mockSource.On("GetState", mock.Anything, "sensor.broken").Return(types.EntityState{}, errors.New("connection refused"))
	s := newTestServer(mockSource)

	t.Run("svg", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node?cells=4", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Equal(t, "nodeenergy", w.Header().Get("Server"))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Contains(t, w.Body.String(), "<svg")
		assert.Contains(t, w.Body.String(), "Garden Node")
	})

	t.Run("png", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node?format=png", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
	})

	t.Run("echarts", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node?format=echarts&layout=overlay", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "echarts")
	})

	t.Run("not found renders placeholder", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.missing", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Entity not found: sensor.missing")
	})

	t.Run("invalid config", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node?cells=many", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid cells")
	})

	t.Run("invalid format", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node?format=gif", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("source error", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.broken", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	})
}

func TestHandleNamedCard(t *testing.T) {
	mockSource := new(sourcemock.MockSource)
	mockSource.On("GetState", mock.Anything, "sensor.garden_node").Return(gardenState(t), nil)
	s := newTestServer(mockSource)
	s.cards = map[string]types.CardConfig{
		"garden": types.CardConfig{Name: "garden", Entity: "sensor.garden_node", Layout: types.LayoutCompact}.Normalize(),
	}

	w := serve(s, httptest.NewRequest(http.MethodGet, "/cards/garden", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<svg")

	w = serve(s, httptest.NewRequest(http.MethodGet, "/cards/shed", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, types.LayoutCompact, s.cardConfigFor("sensor.garden_node").Layout)
	assert.Equal(t, types.StubCardConfig("sensor.shed_node"), s.cardConfigFor("sensor.shed_node"))
}

func TestHandleTooltip(t *testing.T) {
	mockSource := new(sourcemock.MockSource)
	mockSource.On("GetState", mock.Anything, "sensor.garden_node").Return(gardenState(t), nil)
	mockSource.On("GetState", mock.Anything, "sensor.missing").Return(types.EntityState{}, source.ErrEntityNotFound)
	s := newTestServer(mockSource)

	t.Run("rows", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node/tooltip?t=2025-06-01T11:52:00Z", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Kind string `json:"kind"`
			Rows []struct {
				Channel   string    `json:"channel"`
				Value     float64   `json:"value"`
				Timestamp time.Time `json:"timestamp"`
			} `json:"rows"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "chart", resp.Kind)
		require.NotEmpty(t, resp.Rows)
		assert.Equal(t, "soc", resp.Rows[0].Channel)
		assert.Equal(t, 50.0, resp.Rows[0].Value)
		assert.True(t, time.Date(2025, 6, 1, 11, 50, 0, 0, time.UTC).Equal(resp.Rows[0].Timestamp))
	})

	t.Run("placeholder has no rows", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.missing/tooltip?t=2025-06-01T11:52:00Z", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"kind":"not_found","rows":[]}`, w.Body.String())
	})

	t.Run("bad time", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node/tooltip?t=noon", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleScenarios(t *testing.T) {
	mockSource := new(sourcemock.MockSource)
	mockSource.On("GetState", mock.Anything, "sensor.garden_node").Return(gardenState(t), nil)
	mockSource.On("GetState", mock.Anything, "sensor.missing").Return(types.EntityState{}, source.ErrEntityNotFound)
	s := newTestServer(mockSource)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.garden_node/scenarios", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Entity    string  `json:"entity"`
		StartSOC  float64 `json:"startSoc"`
		Steps     int     `json:"steps"`
		Scenarios []struct {
			CellCount int `json:"cellCount"`
		} `json:"scenarios"`
		NoSun []struct {
			T time.Time `json:"t"`
			V float64   `json:"v"`
		} `json:"noSun"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "sensor.garden_node", resp.Entity)
	assert.Equal(t, 50.0, resp.StartSOC)
	assert.Equal(t, 2, resp.Steps)
	require.Len(t, resp.Scenarios, 12)
	assert.Equal(t, 1, resp.Scenarios[0].CellCount)
	assert.Equal(t, 12, resp.Scenarios[11].CellCount)

	// 10 W load drawn from 2 cells of 3500 mAh at 3.7 V with no solar
	require.Len(t, resp.NoSun, 3)
	drop := 10 * projection.StepHours / 25.9 * 100
	assert.Equal(t, 50.0, resp.NoSun[0].V)
	assert.InDelta(t, 50-drop, resp.NoSun[1].V, 1e-6)
	assert.InDelta(t, 50-2*drop, resp.NoSun[2].V, 1e-6)
	assert.True(t, time.Date(2025, 6, 1, 12, 20, 0, 0, time.UTC).Equal(resp.NoSun[2].T))

	w = serve(s, httptest.NewRequest(http.MethodGet, "/api/cards/sensor.missing/scenarios", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleEntities(t *testing.T) {
	other := types.EntityState{EntityID: "sensor.outside_temp", State: 21}

	t.Run("lists node entities", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("ListStates", mock.Anything).Return([]types.EntityState{other, gardenState(t)}, nil)
		s := newTestServer(mockSource)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/entities", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"entities": [{"entity": "sensor.garden_node", "name": "Garden Node"}],
			"stub": {"entity": "sensor.garden_node", "cells": 2, "days": 7}
		}`, w.Body.String())
	})

	t.Run("none", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("ListStates", mock.Anything).Return([]types.EntityState{other}, nil)
		s := newTestServer(mockSource)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/entities", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"entities": []}`, w.Body.String())
	})

	t.Run("source error", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("ListStates", mock.Anything).Return(nil, errors.New("timeout"))
		s := newTestServer(mockSource)

		w := serve(s, httptest.NewRequest(http.MethodGet, "/api/entities", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestHandlePutState(t *testing.T) {
	t.Run("read-only source", func(t *testing.T) {
		mockSource := new(sourcemock.MockSource)
		mockSource.On("PutState", mock.Anything, mock.Anything).Return(source.ErrReadOnly)
		s := newTestServer(mockSource)

		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/states/sensor.garden_node", strings.NewReader(gardenSnapshot)))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("mismatched entity", func(t *testing.T) {
		s := newTestServer(source.NewMemory())
		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/states/sensor.shed_node", strings.NewReader(gardenSnapshot)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(source.NewMemory())
		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/states/sensor.garden_node", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("entity from path", func(t *testing.T) {
		mem := source.NewMemory()
		s := newTestServer(mem)
		w := serve(s, httptest.NewRequest(http.MethodPost, "/api/states/sensor.shed_node", strings.NewReader(`{"state": 12}`)))
		require.Equal(t, http.StatusOK, w.Code)
		st, err := mem.GetState(context.Background(), "sensor.shed_node")
		require.NoError(t, err)
		assert.Equal(t, types.Number(12), st.State)
	})
}

func TestLiveRefresh(t *testing.T) {
	s := newTestServer(source.NewMemory())
	server := httptest.NewServer(s.setupHandler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?entity=sensor.garden_node"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readCard := func() live.CardPayload {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env live.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		require.Equal(t, live.TypeCard, env.Type)
		var p live.CardPayload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		return p
	}

	// the initial render happens before any state was pushed
	p := readCard()
	assert.Equal(t, "not_found", p.Kind)
	assert.Contains(t, p.Document, "Entity not found: sensor.garden_node")

	resp, err := http.Post(server.URL+"/api/states/sensor.garden_node", "application/json", strings.NewReader(gardenSnapshot))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var put putStateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&put))
	assert.Equal(t, 1, put.Subscribers)

	p = readCard()
	assert.Equal(t, "sensor.garden_node", p.Entity)
	assert.Equal(t, "chart", p.Kind)
	assert.Contains(t, p.Document, "<svg")
	assert.False(t, p.RenderedAt.IsZero())

	entitiesResp, err := http.Get(server.URL + "/api/entities")
	require.NoError(t, err)
	defer entitiesResp.Body.Close()
	require.Equal(t, http.StatusOK, entitiesResp.StatusCode)
	var entities entitiesResponse
	require.NoError(t, json.NewDecoder(entitiesResp.Body).Decode(&entities))
	require.Len(t, entities.Entities, 1)
	assert.Equal(t, "sensor.garden_node", entities.Entities[0].Entity)
	assert.True(t, entities.Entities[0].Live)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(source.NewMemory())
	w := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
