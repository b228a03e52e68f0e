// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// GroupMessage model.
package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stafflink/go-chat-core/internal/domain"
)

// CreateGroupMessage inserts a new group message row.
func CreateGroupMessage(db *gorm.DB, groupID, senderID, text string) (*domain.GroupMessage, error) {
	m := &domain.GroupMessage{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListGroupMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
// Soft-deleted rows are included so clients can render tombstones.
func ListGroupMessagesPage(db *gorm.DB, groupID string, offset, limit int) ([]domain.GroupMessage, error) {
	var out []domain.GroupMessage
	err := db.
		Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountGroupMessages uses a raw COUNT so a missing table surfaces as an error.
func CountGroupMessages(db *gorm.DB, groupID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM chat_group_messages WHERE group_id = ?", groupID).Scan(&total).Error
	return total, err
}

// GetGroupMessage loads one message by id, deleted or not.
func GetGroupMessage(db *gorm.DB, id string) (*domain.GroupMessage, error) {
	var m domain.GroupMessage
	err := db.Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SoftDeleteGroupMessage flags one message as deleted without removing the row.
func SoftDeleteGroupMessage(db *gorm.DB, id string) error {
	return db.Model(&domain.GroupMessage{}).
		Where("id = ?", id).
		Update("deleted", true).Error
}
