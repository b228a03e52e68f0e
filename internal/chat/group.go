// Group message router and room membership synchronizer.
//
// Validation order for sends: payload shape, dedup, group exists and active,
// membership, send permission. Every failed check after the reservation
// releases it, except the duplicate case itself, which must keep blocking.
package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/stafflink/go-chat-core/internal/repo"
)

// handleGroupMessage routes one inbound "group:message" event.
func (c *Core) handleGroupMessage(ctx context.Context, ident Identity, conn Pusher, p GroupMessageIn) {
	text := strings.TrimSpace(p.Text)
	switch {
	case p.GroupID == "":
		pushError(conn, ErrInvalidPayload, "groupId is required")
		return
	case text == "":
		pushError(conn, ErrInvalidPayload, "message text is empty")
		return
	case utf8.RuneCountInString(text) > c.chat.MaxMessageRunes:
		pushError(conn, ErrInvalidPayload, "message text too long")
		return
	}

	fp := GroupFingerprint(p.GroupID, ident.UserID, text, p.ClientMessageID, c.now())
	if !c.dedup.ShouldProcess(fp) {
		chatDuplicatesDropped.Inc()
		return
	}

	g, err := c.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		c.dedup.Release(fp)
		if errors.Is(err, repo.ErrNotFound) {
			pushError(conn, ErrGroupNotFound, "group does not exist")
		} else {
			c.log.Error().Err(err).Str("group_id", p.GroupID).Msg("group lookup failed")
			pushError(conn, ErrMessageFailed, "message could not be routed")
		}
		return
	}
	if !g.Active {
		c.dedup.Release(fp)
		pushError(conn, ErrGroupNotFound, "group does not exist")
		return
	}
	if !g.IsMember(ident.UserID) {
		c.dedup.Release(fp)
		pushError(conn, ErrNotAMember, "you are not a member of this group")
		return
	}
	if !g.CanSendMessage(ident.UserID) {
		c.dedup.Release(fp)
		pushError(conn, ErrPermissionDenied, "only admins can send messages in this group")
		return
	}

	msg, err := c.store.CreateGroupMessage(ctx, p.GroupID, ident.UserID, text)
	if err != nil {
		c.dedup.Release(fp)
		c.log.Error().Err(err).Str("group_id", p.GroupID).Msg("group message persist failed")
		pushError(conn, ErrMessageFailed, "message could not be saved")
		return
	}

	// The summary is derived data; a failed refresh must not fail delivery.
	if err := c.store.UpdateGroupLastMessage(ctx, p.GroupID, text, ident.UserID, msg.CreatedAt); err != nil {
		c.log.Warn().Err(err).Str("group_id", p.GroupID).Msg("last-message summary update failed")
	}

	// One room broadcast covers everyone, the sender's local echo included.
	c.hub.Broadcast(p.GroupID, Envelope{Event: EventGroupMessage, Data: GroupMessageOut{
		ID:         msg.ID,
		GroupID:    msg.GroupID,
		SenderID:   msg.SenderID,
		SenderName: ident.DisplayName,
		Text:       msg.Text,
		CreatedAt:  msg.CreatedAt,
	}})

	chatMessagesRouted.WithLabelValues("group").Inc()
}

// handleGroupJoin subscribes the connection to a group room after verifying
// membership.
func (c *Core) handleGroupJoin(ctx context.Context, ident Identity, conn Pusher, p GroupRef) {
	if p.GroupID == "" {
		pushError(conn, ErrInvalidPayload, "groupId is required")
		return
	}
	g, err := c.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			pushError(conn, ErrNotAMember, "you are not a member of this group")
		} else {
			c.log.Error().Err(err).Str("group_id", p.GroupID).Msg("group lookup failed")
			pushError(conn, ErrJoinFailed, "could not join group room")
		}
		return
	}
	if !g.Active || !g.IsMember(ident.UserID) {
		pushError(conn, ErrNotAMember, "you are not a member of this group")
		return
	}
	c.hub.Subscribe(p.GroupID, conn)
}

// relayGroupTyping forwards a typing event to the room, excluding the sender.
func (c *Core) relayGroupTyping(ident Identity, conn Pusher, event string, p GroupRef) {
	if p.GroupID == "" {
		return
	}
	c.hub.BroadcastExcept(p.GroupID, conn.ID(), Envelope{Event: event, Data: TypingNotice{
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		GroupID:     p.GroupID,
	}})
}
