package ws

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"

	"ai-buddy-chat/internal/domain/model"
	"ai-buddy-chat/internal/infra/logging"
)

const (
	maxMessageSize = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	closed bool
}

func newClient(id string, conn *websocket.Conn, hub *Hub) *client {
	conn.SetReadLimit(maxMessageSize)
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  hub,
	}
}

func (c *client) readPump() {
	// The upgraded request's context dies with the HTTP handler, so the
	// pump carries its own.
	ctx := logging.WithConnID(context.Background(), c.id)
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		c.hub.relay.HandleDisconnect(ctx, c.id)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			return
		}
		ctx = c.dispatch(ctx, raw)
	}
}

// dispatch decodes one frame and hands it to the coordinator. A panic
// in a handler is a fault of this one connection, not of the process:
// it is logged and surfaced back as an error event. The returned
// context replaces the pump's, so a join tags later log lines with the
// username.
func (c *client) dispatch(ctx context.Context, raw []byte) (out context.Context) {
	out = ctx
	defer func() {
		if r := recover(); r != nil {
			logging.With(out, c.hub.log).Error().Interface("panic", r).Msg("handler fault")
			c.hub.EmitTo(c.id, model.EventError, model.ErrorPayload{
				Message: "Something went wrong handling your message",
			})
		}
	}()

	ev, err := decodeInbound(raw)
	if err != nil {
		logging.With(out, c.hub.log).Debug().Err(err).Msg("rejected frame")
		c.hub.EmitTo(c.id, model.EventError, model.ErrorPayload{Message: "Invalid event"})
		return out
	}

	switch ev.Name {
	case model.EventUserJoin:
		c.hub.relay.HandleJoin(out, c.id, ev.Join.Username)
		out = logging.WithUsername(out, ev.Join.Username)
	case model.EventMessage:
		// Only chat messages spend rate-limit budget; typing and join
		// chatter must not starve them.
		if !c.hub.limiter.Allow(out, c.id) {
			c.hub.EmitTo(c.id, model.EventError, model.ErrorPayload{
				Message: "You're sending messages too quickly, slow down a little",
			})
			return out
		}
		c.hub.relay.HandleMessage(out, c.id, ev.Message.Message)
	case model.EventTyping:
		c.hub.relay.HandleTyping(out, c.id, ev.Typing.IsTyping)
	}
	return out
}

func (c *client) logReadEnd(err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.hub.log.Debug().Str("conn_id", c.id).Msg("client disconnected")
	case errors.Is(err, io.EOF), errors.Is(err, websocket.ErrReadLimit):
		c.hub.log.Debug().Str("conn_id", c.id).Err(err).Msg("read ended")
	default:
		c.hub.log.Warn().Str("conn_id", c.id).Err(err).Msg("read error")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
