package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stafflink/go-chat-core/internal/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// DirectThread handles GET /messages/direct/:peerId.
//
// Pages are oldest-first. Addressing the reserved assistant identity returns
// the caller's private assistant thread.
func (h *Handler) DirectThread(c *gin.Context) {
	page, size := pageParams(c)

	items, total, err := h.History.DirectThreadPage(c.Request.Context(), userID(c), c.Param("peerId"), page, size)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"messages":   items,
		"pagination": Pagination{Page: page, PageSize: size, Total: total},
	})
}

// GroupMessages handles GET /groups/:id/messages.
func (h *Handler) GroupMessages(c *gin.Context) {
	page, size := pageParams(c)

	items, total, err := h.History.GroupPage(c.Request.Context(), c.Param("id"), userID(c), page, size)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"messages":   items,
		"pagination": Pagination{Page: page, PageSize: size, Total: total},
	})
}

// DeleteGroupMessage handles DELETE /groups/:id/messages/:messageId. The row
// stays as a tombstone so history pages keep their shape.
func (h *Handler) DeleteGroupMessage(c *gin.Context) {
	err := h.History.DeleteGroupMessage(c.Request.Context(), c.Param("id"), userID(c), c.Param("messageId"))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// pageParams reads and clamps ?page= and ?page_size=.
func pageParams(c *gin.Context) (page, size int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	size = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
