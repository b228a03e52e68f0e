// Direct message router.
//
// Validation order: payload shape, self-chat, dedup. The dedup reservation is
// taken synchronously before any persistence or delegate call and released
// whenever that downstream work fails, so a client retry with the same
// clientMessageId is processed instead of blackholed.
package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/stafflink/go-chat-core/internal/assistant"
)

// handleDirectMessage routes one inbound "message" event.
func (c *Core) handleDirectMessage(ctx context.Context, ident Identity, conn Pusher, p DirectMessageIn) {
	text := strings.TrimSpace(p.Text)
	switch {
	case text == "":
		pushError(conn, ErrInvalidPayload, "message text is empty")
		return
	case utf8.RuneCountInString(text) > c.chat.MaxMessageRunes:
		pushError(conn, ErrInvalidPayload, "message text too long")
		return
	case p.RecipientID == "":
		pushError(conn, ErrInvalidPayload, "recipientId is required")
		return
	case p.SenderID != "" && p.SenderID != ident.UserID:
		pushError(conn, ErrInvalidPayload, "senderId does not match connection identity")
		return
	}

	toAssistant := p.RecipientID == c.chat.AssistantUserID
	if p.RecipientID == ident.UserID && !toAssistant {
		pushError(conn, ErrSelfChatPrevented, "cannot message yourself")
		return
	}

	fp := DirectFingerprint(ident.UserID, p.RecipientID, text, p.ClientMessageID, c.now())
	if !c.dedup.ShouldProcess(fp) {
		// Already delivered; retries are normal, not errors.
		chatDuplicatesDropped.Inc()
		return
	}

	if toAssistant {
		c.routeAssistantMessage(ctx, ident, conn, text, fp)
		return
	}
	c.routeHumanMessage(ctx, ident, conn, p.RecipientID, text, fp)
}

// routeHumanMessage persists and delivers a user-to-user message. The sender
// always receives an echo copy; an offline recipient catches up via history.
func (c *Core) routeHumanMessage(ctx context.Context, ident Identity, conn Pusher, recipientID, text, fp string) {
	senderID := ident.UserID
	msg, err := c.store.CreateDirectMessage(ctx, &senderID, recipientID, text, false)
	if err != nil {
		c.dedup.Release(fp)
		c.log.Error().Err(err).Str("user_id", senderID).Msg("direct message persist failed")
		pushError(conn, ErrMessageFailed, "message could not be saved")
		return
	}

	out := DirectMessageOut{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt,
	}
	if rc, online := c.registry.Lookup(recipientID); online {
		rc.Push(Envelope{Event: EventMessage, Data: out})
	}

	echo := out
	echo.Own = true
	conn.Push(Envelope{Event: EventMessage, Data: echo})

	chatMessagesRouted.WithLabelValues("direct").Inc()
}

// routeAssistantMessage handles the reserved assistant peer: the user's text
// is stored as a note-to-self in their own thread and echoed back, then the
// delegate's reply is stored and delivered as an assistant message. Delegate
// failures degrade to a fallback reply and never surface as transport errors.
func (c *Core) routeAssistantMessage(ctx context.Context, ident Identity, conn Pusher, text, fp string) {
	senderID := ident.UserID
	userMsg, err := c.store.CreateDirectMessage(ctx, &senderID, senderID, text, false)
	if err != nil {
		c.dedup.Release(fp)
		c.log.Error().Err(err).Str("user_id", senderID).Msg("assistant prompt persist failed")
		pushError(conn, ErrMessageFailed, "message could not be saved")
		return
	}
	conn.Push(Envelope{Event: EventMessage, Data: DirectMessageOut{
		ID:          userMsg.ID,
		SenderID:    userMsg.SenderID,
		RecipientID: userMsg.RecipientID,
		Text:        userMsg.Text,
		Own:         true,
		CreatedAt:   userMsg.CreatedAt,
	}})

	reply, err := c.delegate.GenerateReply(ctx, text, senderID)
	if err != nil {
		// Free the reservation so a retry can reach the delegate again,
		// then degrade to the fallback text.
		c.dedup.Release(fp)
		chatDelegateFailures.Inc()
		c.log.Warn().Err(err).Str("user_id", senderID).Msg("assistant delegate failed, using fallback reply")
		reply = assistant.FallbackReply
	}

	botMsg, err := c.store.CreateDirectMessage(ctx, nil, senderID, reply, true)
	if err != nil {
		c.dedup.Release(fp)
		c.log.Error().Err(err).Str("user_id", senderID).Msg("assistant reply persist failed")
		pushError(conn, ErrMessageFailed, "assistant reply could not be saved")
		return
	}
	conn.Push(Envelope{Event: EventMessage, Data: DirectMessageOut{
		ID:              botMsg.ID,
		SenderID:        nil,
		RecipientID:     botMsg.RecipientID,
		Text:            botMsg.Text,
		IsFromAssistant: true,
		CreatedAt:       botMsg.CreatedAt,
	}})

	chatMessagesRouted.WithLabelValues("assistant").Inc()
}

// relayDirectTyping forwards a typing event to the named peer's live
// connection. Offline peers are a no-op; nothing is persisted.
func (c *Core) relayDirectTyping(ident Identity, event string, p PeerRef) {
	if p.RecipientID == "" || p.RecipientID == ident.UserID {
		return
	}
	if rc, online := c.registry.Lookup(p.RecipientID); online {
		rc.Push(Envelope{Event: event, Data: TypingNotice{
			UserID:      ident.UserID,
			DisplayName: ident.DisplayName,
		}})
	}
}
