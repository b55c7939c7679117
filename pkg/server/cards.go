package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/nodeenergy/nodeenergy/pkg/card"
	"github.com/nodeenergy/nodeenergy/pkg/live"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/projection"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// cardConfigFor returns the config used for pushed re-renders of entity: the
// first named card showing it, else the stub config.
func (s *Server) cardConfigFor(entity string) types.CardConfig {
	names := make([]string, 0, len(s.cards))
	for name, c := range s.cards {
		if c.Entity == entity {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return types.StubCardConfig(entity)
	}
	sort.Strings(names)
	return s.cards[names[0]]
}

// render fetches the entity's state and builds its view. A missing entity is
// not an error; it renders the not-found placeholder.
func (s *Server) render(ctx context.Context, cfg types.CardConfig) (card.View, error) {
	var state *types.EntityState
	st, err := s.source.GetState(ctx, cfg.Entity)
	switch {
	case err == nil:
		state = &st
	case errors.Is(err, source.ErrEntityNotFound):
	default:
		return card.View{}, fmt.Errorf("error getting state of %s: %w", cfg.Entity, err)
	}
	v := card.Build(card.Input{Config: cfg, State: state})
	if v.Err != nil {
		log.Ctx(ctx).WarnContext(ctx, "projection failed", slog.String("entity", cfg.Entity), slog.Any("error", v.Err))
	}
	return v, nil
}

// renderMessage renders the entity's card into a websocket envelope.
func (s *Server) renderMessage(ctx context.Context, entity string) ([]byte, error) {
	v, err := s.render(ctx, s.cardConfigFor(entity))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := card.WriteHTML(&buf, v); err != nil {
		return nil, fmt.Errorf("error writing card: %w", err)
	}
	return live.NewEnvelope(live.TypeCard, live.CardPayload{
		Entity:     entity,
		Kind:       v.Kind.String(),
		Document:   buf.String(),
		RenderedAt: time.Now().UTC(),
	})
}

func (s *Server) writeCard(w http.ResponseWriter, r *http.Request, cfg types.CardConfig) {
	ctx := r.Context()
	format, err := card.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := s.render(ctx, cfg)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render card", slog.Any("error", err))
		writeJSONError(w, "failed to get entity state", http.StatusBadGateway)
		return
	}

	// render into a buffer so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := card.Write(&buf, v, format); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write card", slog.String("format", string(format)), slog.Any("error", err))
		writeJSONError(w, "failed to write card", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	cfg, err := card.ConfigFromQuery(r.PathValue("entity"), r.URL.Query())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeCard(w, r, cfg)
}

func (s *Server) handleNamedCard(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.cards[r.PathValue("name")]
	if !ok {
		writeJSONError(w, "card not found", http.StatusNotFound)
		return
	}
	s.writeCard(w, r, cfg)
}

type tooltipResponse struct {
	Kind string            `json:"kind"`
	Rows []card.TooltipRow `json:"rows"`
}

func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := card.ConfigFromQuery(r.PathValue("entity"), r.URL.Query())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("t"))
	if err != nil {
		writeJSONError(w, "t must be an RFC3339 timestamp", http.StatusBadRequest)
		return
	}
	v, err := s.render(ctx, cfg)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render card", slog.Any("error", err))
		writeJSONError(w, "failed to get entity state", http.StatusBadGateway)
		return
	}
	rows := v.Tooltip(at)
	if rows == nil {
		rows = []card.TooltipRow{}
	}
	writeJSON(w, tooltipResponse{Kind: v.Kind.String(), Rows: rows})
}

type scenariosResponse struct {
	Entity    string                  `json:"entity"`
	StartSOC  float64                 `json:"startSoc"`
	Steps     int                     `json:"steps"`
	Scenarios []projection.Scenario   `json:"scenarios"`
	NoSun     []types.TimeSeriesPoint `json:"noSun"`
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := card.ConfigFromQuery(r.PathValue("entity"), r.URL.Query())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg = cfg.Normalize()

	st, err := s.source.GetState(ctx, cfg.Entity)
	if errors.Is(err, source.ErrEntityNotFound) {
		writeJSONError(w, "entity not found", http.StatusNotFound)
		return
	} else if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get state", slog.Any("error", err))
		writeJSONError(w, "failed to get entity state", http.StatusBadGateway)
		return
	}

	fin := st.ForecastInput()
	startSOC := st.StartSOC()
	steps := projection.HorizonSteps(cfg.Days, len(fin.Times))
	model := cfg.EnergyModel(st.Attributes)
	scenarios, err := projection.Scenarios(fin, model, startSOC, steps, nil)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to project scenarios", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	// the configured bank running on the load alone
	noSun, err := projection.NoSun(fin, model, startSOC, steps)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to project no-sun soc", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, scenariosResponse{
		Entity:    cfg.Entity,
		StartSOC:  startSOC,
		Steps:     steps,
		Scenarios: scenarios,
		NoSun:     noSun,
	})
}
