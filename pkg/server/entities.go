package server

import (
	"log/slog"
	"net/http"

	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
)

type entityResponse struct {
	Entity string `json:"entity"`
	Name   string `json:"name"`
	// Live is set when a websocket client is subscribed to the entity.
	Live bool `json:"live,omitempty"`
}

type entitiesResponse struct {
	Entities []entityResponse `json:"entities"`
	// Stub is the suggested config of a new card, for the first entity.
	Stub *types.CardConfig `json:"stub,omitempty"`
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	states, err := s.source.ListStates(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list states", slog.Any("error", err))
		writeJSONError(w, "failed to list entities", http.StatusBadGateway)
		return
	}

	subscribed := make(map[string]bool)
	for _, entity := range s.hub.Entities() {
		subscribed[entity] = true
	}

	nodes := source.NodeEnergyStates(states)
	resp := entitiesResponse{Entities: make([]entityResponse, 0, len(nodes))}
	for _, st := range nodes {
		resp.Entities = append(resp.Entities, entityResponse{
			Entity: st.EntityID,
			Name:   st.Name(),
			Live:   subscribed[st.EntityID],
		})
	}
	if len(nodes) > 0 {
		stub := types.StubCardConfig(nodes[0].EntityID)
		resp.Stub = &stub
	}
	writeJSON(w, resp)
}
