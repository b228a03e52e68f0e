package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OnlineUsers handles GET /users/online. Presence is derived from live
// connections, so the list is authoritative for this process.
func (h *Handler) OnlineUsers(c *gin.Context) {
	ids := h.RT.OnlineIDs()
	if ids == nil {
		ids = []string{}
	}
	ok(c, http.StatusOK, gin.H{"online_users": ids})
}
