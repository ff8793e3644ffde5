package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"warden/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const maxStatusConns = 500

// ErrHubFull is returned when the connection limit is reached.
var ErrHubFull = errors.New("status feed connection limit reached")

// StatusHub fans session transition events out to websocket clients.
type StatusHub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int
	closed   bool
}

// NewStatusHub creates an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{
		clients:  make(map[*Client]struct{}),
		maxConns: maxStatusConns,
	}
}

// Register adds a websocket client, optionally scoped to one tenant.
func (h *StatusHub) Register(conn *websocket.Conn, tenantID string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || len(h.clients) >= h.maxConns {
		return nil, ErrHubFull
	}
	c := newClient(h, conn, tenantID)
	h.clients[c] = struct{}{}
	return c, nil
}

// UnregisterClient removes a client and closes its send queue.
func (h *StatusHub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
	}
}

// Count returns the number of connected clients.
func (h *StatusHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers a transition payload to every client subscribed to its
// tenant.
func (h *StatusHub) Broadcast(payload string) {
	var event struct {
		TenantID string `json:"tenant_id"`
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		observability.Logger.Warn("dropping malformed session event", slog.String("error", err.Error()))
		return
	}

	data := []byte(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.TenantID == "" || c.TenantID == event.TenantID {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes the hub to the mirror's event channel.
func (h *StatusHub) StartWiring(ctx context.Context, m *SessionMirror) error {
	return m.Subscribe(ctx, h.Broadcast)
}

// Shutdown closes every client connection.
func (h *StatusHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		if c.Conn != nil {
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		}
		delete(h.clients, c)
		close(c.Send)
	}
	return nil
}
