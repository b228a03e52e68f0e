// Realtime error taxonomy.
//
// These codes are surfaced to the offending connection only and are stable:
// clients branch on them. Duplicate submissions are dropped silently and are
// deliberately absent from this list.
package chat

const (
	ErrInvalidPayload    = "INVALID_PAYLOAD"
	ErrSelfChatPrevented = "SELF_CHAT_PREVENTED"
	ErrGroupNotFound     = "GROUP_NOT_FOUND"
	ErrNotAMember        = "NOT_A_MEMBER"
	ErrPermissionDenied  = "PERMISSION_DENIED"
	ErrMessageFailed     = "MESSAGE_FAILED"
	ErrJoinFailed        = "JOIN_FAILED"
)

// pushError sends an error event to a single connection.
func pushError(p Pusher, code, msg string) {
	chatErrorsSent.WithLabelValues(code).Inc()
	p.Push(Envelope{Event: EventError, Data: ErrorEvent{Type: code, Message: msg}})
}
