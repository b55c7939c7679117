package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nodeenergy/nodeenergy/pkg/log"
)

const sendBuffer = 256

// Client is a single websocket subscriber of one entity.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	entity string
	send   chan []byte
}

// Hub tracks subscribers and fans rendered cards out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

// Unregister removes a client and closes its send channel. It is safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues msg for every client subscribed to entity and returns how
// many clients it was queued for. Clients whose buffer is full are skipped.
func (h *Hub) Broadcast(ctx context.Context, entity string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int
	for c := range h.clients {
		if c.entity != entity {
			continue
		}
		select {
		case c.send <- msg:
			n++
		default:
			log.Ctx(ctx).WarnContext(ctx, "dropping message for slow client", slog.String("entity", entity))
		}
	}
	return n
}

// Entities returns the distinct entities that currently have subscribers.
func (h *Hub) Entities() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for c := range h.clients {
		if !seen[c.entity] {
			seen[c.entity] = true
			out = append(out, c.entity)
		}
	}
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// the peer may already be gone
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains the connection until it closes. Subscribers never send
// anything meaningful.
func (c *Client) readPump(ctx context.Context) {
	defer c.hub.Unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Ctx(ctx).WarnContext(ctx, "websocket closed unexpectedly", slog.Any("error", err))
			}
			return
		}
	}
}
