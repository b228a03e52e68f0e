// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DirectMessage model.
package repo

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stafflink/go-chat-core/internal/domain"
)

// CreateDirectMessage inserts a new one-to-one message row. senderID may be
// nil for assistant-authored messages (fromAssistant = true).
func CreateDirectMessage(db *gorm.DB, senderID *string, recipientID, text string, fromAssistant bool) (*domain.DirectMessage, error) {
	m := &domain.DirectMessage{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		RecipientID:     recipientID,
		Text:            text,
		IsFromAssistant: fromAssistant,
		CreatedAt:       time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// ListDirectThreadPage returns a page of the conversation between two users,
// ordered deterministically (CreatedAt ASC, ID ASC).
func ListDirectThreadPage(db *gorm.DB, userID, peerID string, offset, limit int) ([]domain.DirectMessage, error) {
	var out []domain.DirectMessage
	err := db.
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, peerID, peerID, userID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountDirectThread uses a raw COUNT so a missing table surfaces as an error.
func CountDirectThread(db *gorm.DB, userID, peerID string) (int64, error) {
	var total int64
	err := db.Raw(
		"SELECT COUNT(*) FROM direct_messages WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, peerID, peerID, userID,
	).Scan(&total).Error
	return total, err
}

// ListAssistantThreadPage returns a page of the user's assistant conversation.
// Both sides of that conversation are addressed to the user: the echoed user
// prompts (sender = recipient = user) and the assistant replies (sender NULL,
// is_from_assistant).
func ListAssistantThreadPage(db *gorm.DB, userID string, offset, limit int) ([]domain.DirectMessage, error) {
	var out []domain.DirectMessage
	err := db.
		Where("recipient_id = ? AND (is_from_assistant OR sender_id = ?)", userID, userID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountAssistantThread counts the rows in the user's assistant conversation.
func CountAssistantThread(db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.Raw(
		"SELECT COUNT(*) FROM direct_messages WHERE recipient_id = ? AND (is_from_assistant OR sender_id = ?)",
		userID, userID,
	).Scan(&total).Error
	return total, err
}
