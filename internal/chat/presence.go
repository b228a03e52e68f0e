// Presence broadcaster.
//
// Presence is derived state: it exists only in the connection registry and is
// reconstructed from scratch on restart (everyone starts offline). A fresh
// connection receives the full online set once; everyone else gets
// incremental online/offline events.
package chat

// sendPresenceSync pushes the full current online set to one connection.
func (c *Core) sendPresenceSync(conn Pusher) {
	conn.Push(Envelope{
		Event: EventPresenceSync,
		Data:  PresenceSync{OnlineUsers: c.registry.OnlineIDs()},
	})
}

// broadcastPresence sends an incremental presence event to every connection
// except the one that caused it.
func (c *Core) broadcastPresence(causeConnID string, ident Identity, status string) {
	ev := Envelope{
		Event: EventPresenceUpdate,
		Data: PresenceUpdate{
			UserID:      ident.UserID,
			Status:      status,
			DisplayName: ident.DisplayName,
			At:          c.now().UTC(),
		},
	}
	c.registry.EachExcept(causeConnID, func(p Pusher) {
		p.Push(ev)
	})
}
