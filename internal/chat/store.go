// Persistence collaborator.
//
// The routers only depend on the narrow Store interface; GormStore adapts the
// repository free functions to it. Tests substitute in-memory fakes.
package chat

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/stafflink/go-chat-core/internal/domain"
	"github.com/stafflink/go-chat-core/internal/repo"
)

// Store is the persistence surface the realtime core needs.
type Store interface {
	// CreateDirectMessage appends a one-to-one message. senderID is nil for
	// assistant-authored rows.
	CreateDirectMessage(ctx context.Context, senderID *string, recipientID, text string, fromAssistant bool) (*domain.DirectMessage, error)
	// CreateGroupMessage appends a group message.
	CreateGroupMessage(ctx context.Context, groupID, senderID, text string) (*domain.GroupMessage, error)
	// UpdateGroupLastMessage refreshes the group's last-message summary.
	UpdateGroupLastMessage(ctx context.Context, groupID, text, senderID string, at time.Time) error
	// GetGroup loads a group with members; repo.ErrNotFound when unknown.
	GetGroup(ctx context.Context, groupID string) (*domain.Group, error)
	// ListActiveGroupsByMember returns the active groups a user belongs to.
	ListActiveGroupsByMember(ctx context.Context, userID string) ([]domain.Group, error)
}

// GormStore implements Store on a GORM database handle.
type GormStore struct {
	DB *gorm.DB
}

// CreateDirectMessage proxies repo.CreateDirectMessage.
func (s *GormStore) CreateDirectMessage(ctx context.Context, senderID *string, recipientID, text string, fromAssistant bool) (*domain.DirectMessage, error) {
	return repo.CreateDirectMessage(s.DB.WithContext(ctx), senderID, recipientID, text, fromAssistant)
}

// CreateGroupMessage proxies repo.CreateGroupMessage.
func (s *GormStore) CreateGroupMessage(ctx context.Context, groupID, senderID, text string) (*domain.GroupMessage, error) {
	return repo.CreateGroupMessage(s.DB.WithContext(ctx), groupID, senderID, text)
}

// UpdateGroupLastMessage proxies repo.UpdateGroupLastMessage.
func (s *GormStore) UpdateGroupLastMessage(ctx context.Context, groupID, text, senderID string, at time.Time) error {
	return repo.UpdateGroupLastMessage(s.DB.WithContext(ctx), groupID, text, senderID, at)
}

// GetGroup proxies repo.GetGroup.
func (s *GormStore) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	return repo.GetGroup(s.DB.WithContext(ctx), groupID)
}

// ListActiveGroupsByMember proxies repo.ListActiveGroupsByMember.
func (s *GormStore) ListActiveGroupsByMember(ctx context.Context, userID string) ([]domain.Group, error) {
	return repo.ListActiveGroupsByMember(s.DB.WithContext(ctx), userID)
}
