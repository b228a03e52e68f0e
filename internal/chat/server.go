// Core service object.
//
// Core owns the shared mutable registries (connection registry, room hub,
// dedup cache) and exposes the realtime entry points: the WebSocket upgrade
// handler, the in-process notification hooks called by the REST layer, and
// OnlineIDs for presence annotation. It is constructed once per process and
// passed by reference; tests build a fresh Core per case.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stafflink/go-chat-core/internal/assistant"
	"github.com/stafflink/go-chat-core/internal/config"
)

// Identity is the authenticated user behind a connection, as resolved by the
// Auth collaborator. The assistant is not a User and never authenticates.
type Identity struct {
	UserID      string
	DisplayName string
	Role        string
}

// Authenticator resolves a connection's credential to an Identity or rejects
// the connection. Token issuance lives in the employee-management system.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(r *http.Request) (Identity, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(r *http.Request) (Identity, error) { return f(r) }

// Core is the realtime messaging core.
type Core struct {
	ws   config.WSConfig
	chat config.ChatConfig

	store    Store
	delegate assistant.Delegate
	auth     Authenticator

	registry *Registry
	hub      *Hub
	dedup    *DedupCache

	upgrader websocket.Upgrader
	log      zerolog.Logger
	now      func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New constructs a Core with fresh registries.
func New(ws config.WSConfig, chatCfg config.ChatConfig, store Store, delegate assistant.Delegate, auth Authenticator, log zerolog.Logger) *Core {
	return &Core{
		ws:       ws,
		chat:     chatCfg,
		store:    store,
		delegate: delegate,
		auth:     auth,
		registry: NewRegistry(),
		hub:      NewHub(),
		dedup:    NewDedupCache(chatCfg.DedupTTL),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients are expected behind the same origin or the
			// CORS allowlist enforced at the HTTP layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:  log,
		now:  time.Now,
		done: make(chan struct{}),
	}
}

// Start launches the background dedup sweeper.
func (c *Core) Start() {
	go c.dedup.Run(c.done, c.chat.DedupSweep)
}

// Shutdown stops background work and closes every live connection with a
// going-away frame.
func (c *Core) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.done)
		for _, conn := range c.registry.All() {
			conn.CloseWithReason("server shutting down")
		}
	})
}

// OnlineIDs exposes the live presence set to the REST layer, which uses it to
// annotate user listings.
func (c *Core) OnlineIDs() []string { return c.registry.OnlineIDs() }

// HandleWS upgrades the request and runs the connection lifecycle: auth,
// registration, room subscription, presence, then the read loop.
func (c *Core) HandleWS(w http.ResponseWriter, r *http.Request) {
	ident, err := c.auth.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		c.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConn(ws, c.ws, c.log)
	go conn.writePump()
	c.onConnect(r.Context(), ident, conn)
	c.readLoop(ident, conn, ws)
}

// onConnect registers the connection, tears down any predecessor, mirrors the
// user's group memberships into room subscriptions, and announces presence.
func (c *Core) onConnect(ctx context.Context, ident Identity, conn *Conn) {
	// Single-active-connection invariant: the previous connection is fully
	// unsubscribed before the new one is announced.
	if prev := c.registry.Connect(ident.UserID, ident.DisplayName, conn); prev != nil {
		c.hub.DropConn(prev.ID())
		prev.CloseWithReason("signed in from another connection")
	} else {
		chatOnline.Inc()
	}

	c.syncRooms(ctx, ident.UserID, conn)
	c.sendPresenceSync(conn)
	c.broadcastPresence(conn.ID(), ident, StatusOnline)

	c.log.Info().
		Str("user_id", ident.UserID).
		Str("conn_id", conn.ID()).
		Msg("connection opened")
}

// onDisconnect clears registry and room state, guarding against a stale
// disconnect racing a fresher reconnect.
func (c *Core) onDisconnect(ident Identity, conn *Conn) {
	conn.CloseWithReason("")
	if !c.registry.Disconnect(ident.UserID, conn.ID()) {
		// Superseded by a newer connection; only drop this conn's rooms.
		c.hub.DropConn(conn.ID())
		return
	}
	c.hub.DropConn(conn.ID())
	chatOnline.Dec()
	c.broadcastPresence(conn.ID(), ident, StatusOffline)

	c.log.Info().
		Str("user_id", ident.UserID).
		Str("conn_id", conn.ID()).
		Msg("connection closed")
}

// syncRooms subscribes the connection to the room of every active group the
// user belongs to.
func (c *Core) syncRooms(ctx context.Context, userID string, conn *Conn) {
	groups, err := c.store.ListActiveGroupsByMember(ctx, userID)
	if err != nil {
		c.log.Error().Err(err).Str("user_id", userID).Msg("room sync failed")
		return
	}
	for _, g := range groups {
		c.hub.Subscribe(g.ID, conn)
	}
}

// readLoop drives the inbound side of one connection until the peer goes
// away. Frames are handled in arrival order.
func (c *Core) readLoop(ident Identity, conn *Conn, ws *websocket.Conn) {
	defer c.onDisconnect(ident, conn)

	ws.SetReadLimit(c.ws.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(c.ws.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.ws.PongWait))
	})

	for {
		var frame inboundFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Err(err).Str("user_id", ident.UserID).Msg("read error")
			}
			return
		}
		c.registry.Touch(ident.UserID)
		c.dispatch(context.Background(), ident, conn, frame)
	}
}

// dispatch routes one inbound frame to its handler.
func (c *Core) dispatch(ctx context.Context, ident Identity, conn *Conn, frame inboundFrame) {
	switch frame.Event {
	case EventMessage:
		var p DirectMessageIn
		if !decode(conn, frame.Data, &p) {
			return
		}
		c.handleDirectMessage(ctx, ident, conn, p)
	case EventGroupMessage:
		var p GroupMessageIn
		if !decode(conn, frame.Data, &p) {
			return
		}
		c.handleGroupMessage(ctx, ident, conn, p)
	case EventGroupJoin:
		var p GroupRef
		if !decode(conn, frame.Data, &p) {
			return
		}
		c.handleGroupJoin(ctx, ident, conn, p)
	case EventGroupLeave:
		var p GroupRef
		if !decode(conn, frame.Data, &p) {
			return
		}
		c.hub.Unsubscribe(p.GroupID, conn.ID())
	case EventTypingStart, EventTypingStop:
		var p PeerRef
		if !decode(conn, frame.Data, &p) {
			return
		}
		c.relayDirectTyping(ident, frame.Event, p)
	case EventGroupTypingStart, EventGroupTypingStop:
		var p GroupRef
		if !decode(conn, frame.Data, &p) {
			return
		}
		c.relayGroupTyping(ident, conn, frame.Event, p)
	default:
		pushError(conn, ErrInvalidPayload, "unknown event: "+frame.Event)
	}
}

// decode unmarshals a frame payload, reporting INVALID_PAYLOAD on failure.
func decode(conn Pusher, raw json.RawMessage, into any) bool {
	if len(raw) == 0 {
		pushError(conn, ErrInvalidPayload, "missing payload")
		return false
	}
	if err := json.Unmarshal(raw, into); err != nil {
		pushError(conn, ErrInvalidPayload, "malformed payload")
		return false
	}
	return true
}

// NotifyMembersAdded is called by the REST layer after members were added to
// a group elsewhere. Online members are force-subscribed to the room and told
// about it.
func (c *Core) NotifyMembersAdded(groupID, groupName string, memberIDs []string) {
	for _, id := range memberIDs {
		conn, ok := c.registry.Lookup(id)
		if !ok {
			continue
		}
		c.hub.Subscribe(groupID, conn)
		conn.Push(Envelope{Event: EventGroupAdded, Data: GroupNotice{GroupID: groupID, Name: groupName}})
	}
}

// NotifyMemberRemoved is the counterpart for out-of-band removals (including
// leaves): an online member's connection is unsubscribed and notified.
func (c *Core) NotifyMemberRemoved(groupID, groupName, memberID string) {
	conn, ok := c.registry.Lookup(memberID)
	if !ok {
		return
	}
	c.hub.Unsubscribe(groupID, conn.ID())
	conn.Push(Envelope{Event: EventGroupRemoved, Data: GroupNotice{GroupID: groupID, Name: groupName}})
}
