// Package services defines the business logic for groups, membership, and
// message history. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages, transport error codes, or HTTP statuses is
// performed at the handler/router layer.
package services

import "errors"

var (
	// ErrGroupNotFound indicates that the requested group does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrGroupInactive is returned when a write is attempted against a group
	// that has been soft-deleted (active = false).
	ErrGroupInactive = errors.New("group is inactive")

	// ErrNotAMember indicates the acting or target user does not belong to
	// the group.
	ErrNotAMember = errors.New("not a member of this group")

	// ErrPermissionDenied is returned when the actor's role does not allow
	// the attempted membership or settings operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOwnerImmutable is returned when an operation would remove or demote
	// the group owner; ownership only changes through Leave.
	ErrOwnerImmutable = errors.New("owner role cannot be changed")

	// ErrInvalidRole is returned when a role value is outside {admin, member}.
	ErrInvalidRole = errors.New("role must be admin or member")

	// ErrEmptyName is returned when a group is created or renamed with a
	// blank name.
	ErrEmptyName = errors.New("group name is empty")

	// ErrMessageNotFound indicates the referenced message does not exist in
	// the given group.
	ErrMessageNotFound = errors.New("message not found")
)
