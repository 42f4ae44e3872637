// Package ws is the WebSocket connection transport: it upgrades HTTP
// connections, runs each client's read/write pumps, and implements the
// coordinator's Emitter port for one/all/all-but-one delivery.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-buddy-chat/internal/domain/model"
	"ai-buddy-chat/internal/infra/metrics"
	"ai-buddy-chat/internal/usecase"
)

// Compile-time check
var _ usecase.Emitter = (*Hub)(nil)

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	relay   usecase.RelayUseCase
	limiter MessageLimiter
	log     *zerolog.Logger

	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

func NewHub(limiter MessageLimiter, logger *zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		limiter: limiter,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Usernames are unauthenticated; the page is served from
			// anywhere, so origins are not restricted either.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// AttachRelay wires the coordinator in after construction; the hub and
// the coordinator reference each other.
func (h *Hub) AttachRelay(relay usecase.RelayUseCase) {
	h.relay = relay
}

// HandleUpgrade upgrades the request and starts the client pumps.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(uuid.NewString(), conn, h)
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ConnOpened()
	h.log.Info().Str("conn_id", c.id).Str("remote", conn.RemoteAddr().String()).
		Int("total", total).Msg("connection opened")

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// unregister removes the client; the caller's readPump defer invokes
// the coordinator's disconnect handling exactly once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	c.closed = true
	total := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	h.limiter.Forget(c.id)
	metrics.ConnClosed()
	h.log.Info().Str("conn_id", c.id).Int("total", total).Msg("connection closed")
}

func (h *Hub) EmitTo(connID string, event model.EventName, payload any) {
	frame, err := encodeOutbound(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("encode outbound")
		return
	}
	metrics.ObserveBroadcast(string(event))

	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	if !h.trySend(c, frame) {
		h.dropSlow(c)
	}
}

func (h *Hub) Broadcast(event model.EventName, payload any) {
	h.fanOut("", event, payload)
}

func (h *Hub) BroadcastExcept(connID string, event model.EventName, payload any) {
	h.fanOut(connID, event, payload)
}

func (h *Hub) fanOut(except string, event model.EventName, payload any) {
	frame, err := encodeOutbound(event, payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(event)).Msg("encode outbound")
		return
	}
	metrics.ObserveBroadcast(string(event))

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		if id == except {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var slow []*client
	for _, c := range targets {
		if !h.trySend(c, frame) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.dropSlow(c)
	}
}

func (h *Hub) trySend(c *client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// dropSlow disconnects a client whose send buffer stayed full. Closing
// the conn makes its readPump exit, which runs the normal disconnect
// path.
func (h *Hub) dropSlow(c *client) {
	metrics.ClientDropped()
	h.log.Warn().Str("conn_id", c.id).Msg("dropping client with full send buffer")
	_ = c.conn.Close()
}

// ConnectionCount reports currently open transport connections
// (including ones that have not joined yet).
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and waits for the pumps, at most
// until the deadline.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
