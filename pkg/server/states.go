package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nodeenergy/nodeenergy/pkg/live"
	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

// maxStateBytes bounds the body of a pushed snapshot.
const maxStateBytes = 8 << 20

type putStateResponse struct {
	Entity      string `json:"entity"`
	Subscribers int    `json:"subscribers"`
}

// handlePutState stores a full snapshot pushed by the host and re-renders the
// entity's card for every websocket subscriber.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := r.PathValue("entity")

	r.Body = http.MaxBytesReader(w, r.Body, maxStateBytes)
	var st types.EntityState
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode state", slog.Any("error", err))
		writeJSONError(w, "invalid state", http.StatusBadRequest)
		return
	}
	if st.EntityID == "" {
		st.EntityID = entity
	} else if st.EntityID != entity {
		writeJSONError(w, "entity_id does not match the path", http.StatusBadRequest)
		return
	}

	if err := s.source.PutState(ctx, st); err != nil {
		if errors.Is(err, source.ErrReadOnly) {
			writeJSONError(w, "the configured source does not accept states", http.StatusMethodNotAllowed)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to store state", slog.Any("error", err))
		writeJSONError(w, "failed to store state", http.StatusInternalServerError)
		return
	}

	var subscribers int
	msg, err := s.renderMessage(ctx, entity)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render pushed state", slog.String("entity", entity), slog.Any("error", err))
		if msg, err = live.NewEnvelope(live.TypeError, live.ErrorPayload{Entity: entity, Error: "render failed"}); err == nil {
			s.hub.Broadcast(ctx, entity, msg)
		}
	} else {
		subscribers = s.hub.Broadcast(ctx, entity, msg)
	}
	log.Ctx(ctx).DebugContext(ctx, "state stored", slog.String("entity", entity), slog.Int("subscribers", subscribers))

	writeJSON(w, putStateResponse{Entity: entity, Subscribers: subscribers})
}
