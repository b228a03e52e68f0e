// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Group and
// GroupMember models.
package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stafflink/go-chat-core/internal/domain"
)

// CreateGroup inserts a group with the owner as its first member.
func CreateGroup(db *gorm.DB, name, description, ownerID string, settings domain.GroupSettings) (*domain.Group, error) {
	now := time.Now().UTC()
	g := &domain.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Settings:    settings,
		Active:      true,
		CreatedAt:   now,
		Members: []domain.GroupMember{
			{UserID: ownerID, Role: domain.RoleOwner, JoinedAt: now, AddedBy: ownerID},
		},
	}
	return g, db.Create(g).Error
}

// GetGroup loads a group with its member list, ordered by join time so the
// "first remaining admin / first remaining member" rules are deterministic.
// Returns ErrNotFound when the id is unknown.
func GetGroup(db *gorm.DB, id string) (*domain.Group, error) {
	var g domain.Group
	err := db.
		Preload("Members", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("joined_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListActiveGroupsByMember returns every active group the user belongs to.
func ListActiveGroupsByMember(db *gorm.DB, userID string) ([]domain.Group, error) {
	var out []domain.Group
	err := db.
		Joins("JOIN chat_group_members m ON m.group_id = chat_groups.id").
		Where("m.user_id = ? AND chat_groups.active = ?", userID, true).
		Order("chat_groups.created_at ASC").
		Find(&out).Error
	return out, err
}

// AddGroupMember appends one membership row.
func AddGroupMember(db *gorm.DB, groupID, userID, role, addedBy string) error {
	m := &domain.GroupMember{
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
		AddedBy:  addedBy,
	}
	return db.Create(m).Error
}

// RemoveGroupMember deletes a membership row.
func RemoveGroupMember(db *gorm.DB, groupID, userID string) error {
	return db.Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&domain.GroupMember{}).Error
}

// UpdateMemberRole changes one member's role.
func UpdateMemberRole(db *gorm.DB, groupID, userID, role string) error {
	return db.Model(&domain.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role).Error
}

// UpdateGroupOwner points the group at a new owner id.
func UpdateGroupOwner(db *gorm.DB, groupID, ownerID string) error {
	return db.Model(&domain.Group{}).
		Where("id = ?", groupID).
		Update("owner_id", ownerID).Error
}

// UpdateGroupInfo changes the group's display fields.
func UpdateGroupInfo(db *gorm.DB, groupID, name, description string) error {
	return db.Model(&domain.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{"name": name, "description": description}).Error
}

// UpdateGroupSettings replaces the permission toggles.
func UpdateGroupSettings(db *gorm.DB, groupID string, s domain.GroupSettings) error {
	return db.Model(&domain.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"set_only_admins_can_send":        s.OnlyAdminsCanSend,
			"set_only_admins_can_add_members": s.OnlyAdminsCanAddMembers,
			"set_only_admins_can_edit_info":   s.OnlyAdminsCanEditInfo,
		}).Error
}

// DeactivateGroup soft-deletes the group; history stays intact.
func DeactivateGroup(db *gorm.DB, groupID string) error {
	return db.Model(&domain.Group{}).
		Where("id = ?", groupID).
		Update("active", false).Error
}

// UpdateGroupLastMessage refreshes the denormalized last-message summary.
func UpdateGroupLastMessage(db *gorm.DB, groupID, text, senderID string, at time.Time) error {
	return db.Model(&domain.Group{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"last_message_text":      text,
			"last_message_sender_id": senderID,
			"last_message_at":        at,
		}).Error
}
