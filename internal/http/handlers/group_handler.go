// Group HTTP handlers.
//
// These endpoints drive the group membership and settings operations. Every
// mutation that affects who belongs to a room also notifies the realtime core
// so online members are (un)subscribed without waiting for a reconnect.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stafflink/go-chat-core/internal/domain"
)

//
// DTOs
//

// GroupSettingsDTO mirrors the per-group permission toggles.
type GroupSettingsDTO struct {
	OnlyAdminsCanSend       bool `json:"only_admins_can_send"`
	OnlyAdminsCanAddMembers bool `json:"only_admins_can_add_members"`
	OnlyAdminsCanEditInfo   bool `json:"only_admins_can_edit_info"`
}

func (d GroupSettingsDTO) model() domain.GroupSettings {
	return domain.GroupSettings{
		OnlyAdminsCanSend:       d.OnlyAdminsCanSend,
		OnlyAdminsCanAddMembers: d.OnlyAdminsCanAddMembers,
		OnlyAdminsCanEditInfo:   d.OnlyAdminsCanEditInfo,
	}
}

// CreateGroupRequest is the JSON payload for creating a group.
type CreateGroupRequest struct {
	Name        string           `json:"name" binding:"required,min=1"`
	Description string           `json:"description"`
	Settings    GroupSettingsDTO `json:"settings"`
	MemberIDs   []string         `json:"member_ids"`
}

// AddMembersRequest is the JSON payload for adding members.
type AddMembersRequest struct {
	MemberIDs []string `json:"member_ids" binding:"required,min=1"`
}

// ChangeRoleRequest is the JSON payload for promoting/demoting a member.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateGroupInfoRequest is the JSON payload for renaming a group.
type UpdateGroupInfoRequest struct {
	Name        string `json:"name" binding:"required,min=1"`
	Description string `json:"description"`
}

//
// Handlers
//

// CreateGroup handles POST /groups.
func (h *Handler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	uid := userID(c)

	g, err := h.Groups.CreateGroup(c.Request.Context(), uid, req.Name, req.Description, req.Settings.model())
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	if len(req.MemberIDs) > 0 {
		added, err := h.Groups.AddMembers(c.Request.Context(), g.ID, uid, req.MemberIDs)
		if err == nil && len(added) > 0 {
			h.RT.NotifyMembersAdded(g.ID, g.Name, added)
		}
	}
	// Re-read so the response carries the final member list.
	g, err = h.Groups.GetGroup(c.Request.Context(), g.ID, uid)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, g)
}

// ListGroups handles GET /groups.
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.Groups.ListGroups(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"groups": groups})
}

// GetGroup handles GET /groups/:id.
func (h *Handler) GetGroup(c *gin.Context) {
	g, err := h.Groups.GetGroup(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, g)
}

// AddMembers handles POST /groups/:id/members.
func (h *Handler) AddMembers(c *gin.Context) {
	var req AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	groupID := c.Param("id")

	added, err := h.Groups.AddMembers(c.Request.Context(), groupID, userID(c), req.MemberIDs)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	if len(added) > 0 {
		h.RT.NotifyMembersAdded(groupID, groupName(c, h, groupID), added)
	}
	ok(c, http.StatusOK, gin.H{"added": added})
}

// RemoveMember handles DELETE /groups/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	groupID := c.Param("id")
	memberID := c.Param("userId")

	if err := h.Groups.RemoveMember(c.Request.Context(), groupID, userID(c), memberID); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	h.RT.NotifyMemberRemoved(groupID, groupName(c, h, groupID), memberID)
	noContent(c)
}

// LeaveGroup handles POST /groups/:id/leave.
func (h *Handler) LeaveGroup(c *gin.Context) {
	groupID := c.Param("id")
	uid := userID(c)

	res, err := h.Groups.Leave(c.Request.Context(), groupID, uid)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	h.RT.NotifyMemberRemoved(groupID, "", uid)
	ok(c, http.StatusOK, gin.H{
		"new_owner_id": res.NewOwnerID,
		"deactivated":  res.Deactivated,
	})
}

// ChangeRole handles PUT /groups/:id/members/:userId/role.
func (h *Handler) ChangeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if err := h.Groups.ChangeRole(c.Request.Context(), c.Param("id"), userID(c), c.Param("userId"), req.Role); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// UpdateInfo handles PUT /groups/:id/info.
func (h *Handler) UpdateInfo(c *gin.Context) {
	var req UpdateGroupInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if err := h.Groups.UpdateInfo(c.Request.Context(), c.Param("id"), userID(c), req.Name, req.Description); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// UpdateSettings handles PUT /groups/:id/settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req GroupSettingsDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if err := h.Groups.UpdateSettings(c.Request.Context(), c.Param("id"), userID(c), req.model()); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// DeleteGroup handles DELETE /groups/:id. Deletion is a soft deactivation.
func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.Groups.DeleteGroup(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// groupName fetches a group's display name for notifications; best effort.
func groupName(c *gin.Context, h *Handler, groupID string) string {
	g, err := h.Groups.GetGroup(c.Request.Context(), groupID, userID(c))
	if err != nil {
		return ""
	}
	return g.Name
}
