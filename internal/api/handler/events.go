package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/deploytrack/internal/api/request"
	"github.com/edvin/deploytrack/internal/api/response"
	"github.com/edvin/deploytrack/internal/hub"
	"github.com/edvin/deploytrack/internal/model"
)

// writeTimeout bounds a single event write to one subscriber so a
// stalled connection cannot hold up a broadcast.
const writeTimeout = 5 * time.Second

type Events struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

func NewEvents(h *hub.Hub, logger zerolog.Logger) *Events {
	return &Events{hub: h, logger: logger.With().Str("component", "events").Logger()}
}

// wsConn adapts a websocket connection to the hub's Conn interface.
// Writes are serialized: broadcasts and the read-loop echo may send
// concurrently.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, event model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, event)
}

// Subscribe upgrades to WebSocket and registers the connection for all
// events. Incoming text is echoed back to the sender.
func (h *Events) Subscribe(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := &wsConn{ws: ws}
	h.hub.Subscribe(conn, "")
	defer h.hub.Unsubscribe(conn, "")
	defer ws.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		if err := conn.Send(ctx, model.Event{Type: "echo", Data: string(data)}); err != nil {
			return
		}
	}
}

// SubscribeService upgrades to WebSocket and registers the connection
// for one service's events on top of the global feed. Incoming text is
// re-broadcast to the service's other subscribers as a service_update.
func (h *Events) SubscribeService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str("service_id", serviceID).Msg("websocket upgrade failed")
		return
	}

	conn := &wsConn{ws: ws}
	h.hub.Subscribe(conn, serviceID)
	defer h.hub.Unsubscribe(conn, serviceID)
	defer ws.CloseNow()

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		h.hub.BroadcastTo(ctx, serviceID, model.Event{
			Type:      model.EventServiceUpdate,
			ServiceID: serviceID,
			Data:      string(data),
		})
	}
}
