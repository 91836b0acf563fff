// Package hub fans out registry events to live websocket subscribers.
package hub

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/deploytrack/internal/metrics"
	"github.com/edvin/deploytrack/internal/model"
)

// Conn is one live subscriber connection. Send must be safe for
// sequential calls from multiple broadcasts.
type Conn interface {
	Send(ctx context.Context, event model.Event) error
}

// Hub tracks live connections and their per-service subscriptions.
// It is created at process start and passed to whatever issues
// broadcasts; there is no package-level instance.
type Hub struct {
	mu        sync.Mutex
	global    map[Conn]struct{}
	byService map[string]map[Conn]struct{}
	logger    zerolog.Logger
}

func New(logger zerolog.Logger) *Hub {
	return &Hub{
		global:    make(map[Conn]struct{}),
		byService: make(map[string]map[Conn]struct{}),
		logger:    logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe registers the connection. A non-empty serviceID also adds
// it to that service's subscriber set.
func (h *Hub) Subscribe(c Conn, serviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.global[c] = struct{}{}
	if serviceID != "" {
		set, ok := h.byService[serviceID]
		if !ok {
			set = make(map[Conn]struct{})
			h.byService[serviceID] = set
		}
		set[c] = struct{}{}
	}
}

// Unsubscribe removes the connection from the global set and, if
// serviceID is non-empty, from that service's set. An emptied
// per-service set is pruned.
func (h *Hub) Unsubscribe(c Conn, serviceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.global, c)
	if serviceID != "" {
		h.removeFromServiceLocked(c, serviceID)
	}
}

// BroadcastAll delivers the event to every live connection.
func (h *Hub) BroadcastAll(ctx context.Context, event model.Event) {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.global))
	for c := range h.global {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.deliver(ctx, conns, event)
}

// BroadcastTo delivers the event to connections subscribed to the
// given service.
func (h *Hub) BroadcastTo(ctx context.Context, serviceID string, event model.Event) {
	h.mu.Lock()
	set := h.byService[serviceID]
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.deliver(ctx, conns, event)
}

// deliver sends the event to each connection in turn. A send failure
// drops that connection from all sets; delivery to the remaining
// connections continues.
func (h *Hub) deliver(ctx context.Context, conns []Conn, event model.Event) {
	var dead []Conn
	for _, c := range conns {
		if err := c.Send(ctx, event); err != nil {
			h.logger.Debug().Err(err).Str("event", event.Type).Msg("dropping dead subscriber")
			dead = append(dead, c)
			continue
		}
		metrics.EventsBroadcast.WithLabelValues(event.Type).Inc()
	}

	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range dead {
		delete(h.global, c)
		for serviceID := range h.byService {
			h.removeFromServiceLocked(c, serviceID)
		}
	}
}

func (h *Hub) removeFromServiceLocked(c Conn, serviceID string) {
	set, ok := h.byService[serviceID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.byService, serviceID)
	}
}

// Shutdown drops all subscriptions. Connection close is left to the
// transport handlers that own the sockets.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.global = make(map[Conn]struct{})
	h.byService = make(map[string]map[Conn]struct{})
}
