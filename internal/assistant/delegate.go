// Package assistant defines the Assistant Delegate contract consumed by the
// direct message router, plus a built-in knowledge-base implementation that
// answers from a Markdown document.
//
// Delegate failures are expected to be handled by the caller: the router
// converts any error into FallbackReply delivered as a normal assistant
// message, never into a transport error.
package assistant

import "context"

// FallbackReply is surfaced to the user when the delegate fails. It is a
// normal assistant message, not an error event.
const FallbackReply = "Sorry, I couldn't process that right now. Please try again in a moment."

// DeclineReply is returned when the knowledge base holds nothing relevant.
const DeclineReply = "I can't answer that from the information I have."

// Delegate produces an assistant reply for a user's message. Implementations
// may call out to external services and may fail; callers must degrade
// gracefully.
type Delegate interface {
	GenerateReply(ctx context.Context, text, userID string) (string, error)
}

// DelegateFunc adapts a plain function to the Delegate interface.
type DelegateFunc func(ctx context.Context, text, userID string) (string, error)

// GenerateReply implements Delegate.
func (f DelegateFunc) GenerateReply(ctx context.Context, text, userID string) (string, error) {
	return f(ctx, text, userID)
}
