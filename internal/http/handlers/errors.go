// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic codes are mapped to HTTP responses via the fail() helper and
// give clients a stable, machine-readable taxonomy alongside human-readable
// messages. Generic codes mirror common HTTP status semantics; domain codes
// cover business failures a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeUpdateFailed     = "update_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
