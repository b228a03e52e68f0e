// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the Handler aggregate and the mapping from service-layer
// sentinel errors to HTTP responses. Handlers are transport-thin: they
// validate inputs, delegate to services, and notify the realtime core about
// membership changes so live connections stay in sync.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stafflink/go-chat-core/internal/services"
)

// Realtime is the slice of the realtime core the REST layer needs: presence
// annotation plus out-of-band membership notifications.
type Realtime interface {
	OnlineIDs() []string
	NotifyMembersAdded(groupID, groupName string, memberIDs []string)
	NotifyMemberRemoved(groupID, groupName, memberID string)
}

// Handler bundles the services behind the public API.
type Handler struct {
	Groups  *services.GroupService
	History *services.HistoryService
	RT      Realtime
}

// New constructs a Handler.
func New(groups *services.GroupService, history *services.HistoryService, rt Realtime) *Handler {
	return &Handler{Groups: groups, History: history, RT: rt}
}

// userID returns the authenticated user id placed in the context by the auth
// middleware.
func userID(c *gin.Context) string {
	return c.GetString("userID")
}

// failService translates service sentinels into HTTP error envelopes.
// Unknown errors become a 500 with the given domain code.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "group not found")
	case errors.Is(err, services.ErrGroupInactive):
		fail(c, http.StatusGone, ErrCodeNotFound, "group is no longer active")
	case errors.Is(err, services.ErrNotAMember):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a member of this group")
	case errors.Is(err, services.ErrPermissionDenied):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "permission denied")
	case errors.Is(err, services.ErrOwnerImmutable):
		fail(c, http.StatusConflict, ErrCodeConflict, "owner role cannot be changed")
	case errors.Is(err, services.ErrInvalidRole):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be admin or member")
	case errors.Is(err, services.ErrEmptyName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "group name must not be empty")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, "operation failed")
	}
}
