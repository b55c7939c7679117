package live

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/nodeenergy/nodeenergy/pkg/log"
)

// RenderFunc renders the current card of entity into a message ready to send.
type RenderFunc func(ctx context.Context, entity string) ([]byte, error)

// Handler upgrades requests to websocket subscriptions of a single entity.
type Handler struct {
	hub      *Hub
	render   RenderFunc
	upgrader websocket.Upgrader
}

// NewHandler returns a handler registering subscribers on hub. render, if
// set, is used to send the current card as soon as a client connects. An
// empty origins list allows every origin.
func NewHandler(hub *Hub, render RenderFunc, origins []string) *Handler {
	h := &Handler{hub: hub, render: render}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 || slices.Contains(origins, "*") {
				return true
			}
			return slices.Contains(origins, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := strings.TrimSpace(r.URL.Query().Get("entity"))
	if entity == "" {
		http.Error(w, "entity is required", http.StatusBadRequest)
		return
	}
	ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("entity", entity)))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		log.Ctx(ctx).WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &Client{
		hub:    h.hub,
		conn:   conn,
		entity: entity,
		send:   make(chan []byte, sendBuffer),
	}
	h.hub.Register(c)
	log.Ctx(ctx).DebugContext(ctx, "websocket client connected", slog.Int("clients", h.hub.ClientCount()))

	if h.render != nil {
		msg, err := h.render(ctx, entity)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to render initial card", slog.Any("error", err))
		} else {
			c.send <- msg
		}
	}

	go c.writePump()
	c.readPump(ctx)
}
