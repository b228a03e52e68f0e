// Room hub.
//
// A room is a transport-level broadcast set mirroring one chat group. The hub
// tracks which connections subscribe to which rooms and fans envelopes out to
// them. Sends are non-blocking (Pusher.Push drops on a full queue), so one
// slow subscriber never stalls a broadcast.
package chat

import "sync"

// Hub maps room names to their subscribed connections.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Pusher // room -> conn id -> conn
}

// NewHub initializes an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]Pusher)}
}

// Subscribe adds conn to room. Subscribing twice is a no-op.
func (h *Hub) Subscribe(room string, conn Pusher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]Pusher)
	}
	h.rooms[room][conn.ID()] = conn
}

// Unsubscribe removes the connection from room. Leaving a room you are not
// in is a no-op.
func (h *Hub) Unsubscribe(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[room]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// DropConn removes the connection from every room. Called on disconnect and
// on forced replacement.
func (h *Hub) DropConn(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, subs := range h.rooms {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast pushes ev to every subscriber of room, including the sender's own
// connection when subscribed.
func (h *Hub) Broadcast(room string, ev Envelope) {
	for _, c := range h.subscribers(room, "") {
		c.Push(ev)
	}
}

// BroadcastExcept pushes ev to every subscriber of room except exceptConnID.
func (h *Hub) BroadcastExcept(room, exceptConnID string, ev Envelope) {
	for _, c := range h.subscribers(room, exceptConnID) {
		c.Push(ev)
	}
}

// Subscribed reports whether connID is currently in room.
func (h *Hub) Subscribed(room, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, ok = subs[connID]
	return ok
}

// subscribers snapshots a room's connections under the read lock so pushes
// happen outside it.
func (h *Hub) subscribers(room, exceptConnID string) []Pusher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := h.rooms[room]
	out := make([]Pusher, 0, len(subs))
	for id, c := range subs {
		if exceptConnID != "" && id == exceptConnID {
			continue
		}
		out = append(out, c)
	}
	return out
}
