// Package chat implements the realtime messaging core: connection registry,
// presence, room-based routing, deduplication, and the direct/group message
// routers that drive the WebSocket transport.
//
// This file defines the wire protocol: event names shared with clients and
// the payload shapes carried in both directions.
package chat

import (
	"encoding/json"
	"time"
)

// Events consumed from clients.
const (
	EventMessage          = "message"
	EventGroupMessage     = "group:message"
	EventGroupJoin        = "group:join"
	EventGroupLeave       = "group:leave"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventGroupTypingStart = "group:typing:start"
	EventGroupTypingStop  = "group:typing:stop"
)

// Events emitted to clients. EventMessage and EventGroupMessage are reused on
// the way out; typing relays keep their inbound names.
const (
	EventPresenceSync   = "presence:sync"
	EventPresenceUpdate = "presence:update"
	EventGroupAdded     = "group:added"
	EventGroupRemoved   = "group:removed"
	EventError          = "error"
)

// Presence status values carried by EventPresenceUpdate.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Envelope is the outbound wire frame: an event name plus its payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundFrame is the raw client frame; Data stays opaque until the event
// name selects a payload type.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DirectMessageIn is the payload of an inbound "message" event. SenderID is
// optional; when present it must match the connection's authenticated
// identity.
type DirectMessageIn struct {
	SenderID        string `json:"senderId,omitempty"`
	RecipientID     string `json:"recipientId"`
	Text            string `json:"text"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// GroupMessageIn is the payload of an inbound "group:message" event.
type GroupMessageIn struct {
	GroupID         string `json:"groupId"`
	Text            string `json:"text"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

// GroupRef names a group in join/leave and typing payloads.
type GroupRef struct {
	GroupID string `json:"groupId"`
}

// PeerRef names the counterpart of a direct typing event.
type PeerRef struct {
	RecipientID string `json:"recipientId"`
}

// DirectMessageOut is the payload of an outbound "message" event. Own marks
// the echo copy delivered back to the sender for local rendering.
type DirectMessageOut struct {
	ID              string    `json:"id"`
	SenderID        *string   `json:"senderId"`
	RecipientID     string    `json:"recipientId"`
	Text            string    `json:"text"`
	IsFromAssistant bool      `json:"isFromAssistant,omitempty"`
	Own             bool      `json:"own,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// GroupMessageOut is the payload of an outbound "group:message" event,
// rendered with the sender's display name for all room subscribers.
type GroupMessageOut struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"groupId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PresenceSync is pushed once to every fresh connection.
type PresenceSync struct {
	OnlineUsers []string `json:"onlineUsers"`
}

// PresenceUpdate is broadcast to all other clients on connect/disconnect.
type PresenceUpdate struct {
	UserID      string    `json:"userId"`
	Status      string    `json:"status"`
	DisplayName string    `json:"displayName"`
	At          time.Time `json:"at"`
}

// TypingNotice carries typing relays for both direct and group chats.
// GroupID is empty for direct typing events.
type TypingNotice struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	GroupID     string `json:"groupId,omitempty"`
}

// GroupNotice announces out-of-band membership changes to the affected user.
type GroupNotice struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name,omitempty"`
}

// ErrorEvent is sent to the offending connection only, never broadcast.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
