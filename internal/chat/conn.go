// WebSocket connection wrapper.
//
// Conn owns the write side of one peer: all outbound frames go through a
// buffered channel drained by a single write pump, so routers and broadcasts
// never block on a slow socket. The read side is driven by the Core's
// per-connection read loop (server.go).
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stafflink/go-chat-core/internal/config"
)

// Pusher is the outbound half of a connection as seen by the routers and the
// registry. Tests substitute fakes; production code uses *Conn.
type Pusher interface {
	// ID returns the unique connection id (not the user id).
	ID() string
	// Push enqueues one frame. It reports false when the peer's queue is
	// full or the connection is closing; the frame is dropped, not blocked on.
	Push(ev Envelope) bool
	// CloseWithReason tears the connection down, sending a close frame with
	// the given reason when possible.
	CloseWithReason(reason string)
}

// Conn wraps a gorilla/websocket connection with a buffered outbound queue.
type Conn struct {
	id  string
	ws  *websocket.Conn
	cfg config.WSConfig
	log zerolog.Logger

	send chan Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, cfg config.WSConfig, log zerolog.Logger) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		ws:     ws,
		cfg:    cfg,
		log:    log,
		send:   make(chan Envelope, cfg.SendBuffer),
		closed: make(chan struct{}),
	}
}

// ID implements Pusher.
func (c *Conn) ID() string { return c.id }

// Push implements Pusher. A full queue drops the frame rather than blocking
// the router; the peer catches up through a history fetch.
func (c *Conn) Push(ev Envelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		c.log.Warn().Str("conn_id", c.id).Str("event", ev.Event).Msg("send buffer full, dropping frame")
		return false
	}
}

// CloseWithReason implements Pusher. Safe to call multiple times.
func (c *Conn) CloseWithReason(reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
		_ = c.ws.Close()
	})
}

// writePump drains the outbound queue and emits keepalive pings. It owns all
// writes to the underlying socket and exits when the connection closes.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.CloseWithReason("write failure")
	}()

	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
