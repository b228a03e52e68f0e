// Connection Registry.
//
// The registry is the authoritative in-memory map between user identity and
// the single live connection for that identity. Presence is derived entirely
// from it: the process starts with everyone offline and rebuilds state as
// connections arrive.
package chat

import (
	"sync"
	"time"
)

// connRecord is one live connection for a user.
type connRecord struct {
	conn        Pusher
	userID      string
	displayName string
	lastSeenAt  time.Time
}

// Registry maps user ids to their single active connection. A reconnect
// under the same identity forcibly replaces the previous record; a disconnect
// only clears the record if it still refers to the disconnecting connection,
// so a stale disconnect can never evict a fresher reconnect.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*connRecord
	now    func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*connRecord),
		now:    time.Now,
	}
}

// Connect registers conn as the current connection for userID and returns the
// replaced connection, if any. The caller is responsible for tearing the
// previous connection down (close frame, room unsubscribe).
func (r *Registry) Connect(userID, displayName string, conn Pusher) (prev Pusher) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		prev = old.conn
	}
	r.byUser[userID] = &connRecord{
		conn:        conn,
		userID:      userID,
		displayName: displayName,
		lastSeenAt:  r.now(),
	}
	return prev
}

// Disconnect removes the record for userID only if connID still matches the
// stored connection. Returns true when the user actually went offline.
func (r *Registry) Disconnect(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byUser[userID]
	if !ok || rec.conn.ID() != connID {
		return false
	}
	delete(r.byUser, userID)
	return true
}

// Lookup returns the live connection for userID, if online.
func (r *Registry) Lookup(userID string) (Pusher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return rec.conn, true
}

// Touch refreshes the last-seen timestamp for userID.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byUser[userID]; ok {
		rec.lastSeenAt = r.now()
	}
}

// OnlineIDs returns the set of currently online user ids.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	return out
}

// Online reports the current number of live connections.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// EachExcept calls fn for every live connection except the one with connID.
// Used for presence broadcasts.
func (r *Registry) EachExcept(connID string, fn func(Pusher)) {
	r.mu.RLock()
	conns := make([]Pusher, 0, len(r.byUser))
	for _, rec := range r.byUser {
		if rec.conn.ID() != connID {
			conns = append(conns, rec.conn)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}

// All returns every live connection. Used for shutdown.
func (r *Registry) All() []Pusher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pusher, 0, len(r.byUser))
	for _, rec := range r.byUser {
		out = append(out, rec.conn)
	}
	return out
}
