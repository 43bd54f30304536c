// Package ws is the websocket transport adapter: handshake gating, the
// read/write pumps, the typed event dispatch and the presence fan-out.
package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mentorlink/consult/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// envelope is the inbound frame shape. Seq, when present, requests an ack.
type envelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is every server-to-client frame.
type outbound struct {
	Event string `json:"event"`
	Seq   int64  `json:"seq,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// ackBody is the payload of an "ack" frame.
type ackBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// conn wraps one websocket with a buffered send channel. Writes go through
// TrySend so a slow consumer drops frames instead of stalling a broadcast.
type conn struct {
	id     string
	userID domain.UserID
	ws     *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(id string, userID domain.UserID, wsc *websocket.Conn) *conn {
	return &conn{
		id:     id,
		userID: userID,
		ws:     wsc,
		send:   make(chan []byte, 32),
	}
}

func (c *conn) ID() string            { return c.id }
func (c *conn) UserID() domain.UserID { return c.userID }

// Send implements session.Peer and rooms.Sender.
func (c *conn) Send(event string, data any) error {
	return c.sendFrame(outbound{Event: event, Data: data})
}

func (c *conn) ack(seq int64, ok bool, message string, data any) {
	_ = c.sendFrame(outbound{Event: "ack", Seq: seq, Data: ackBody{OK: ok, Message: message, Data: data}})
}

func (c *conn) sendFrame(f outbound) error {
	b, err := json.Marshal(f)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", f.Event).Msg("marshal frame")
		return err
	}
	return c.trySend(b)
}

func (c *conn) trySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}
