// Package services – HistoryService
//
// Message history is plain store-and-replay: ascending pages over the
// persisted rows. Offline recipients catch up through these pages on their
// next fetch; the realtime core does not queue missed messages.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/stafflink/go-chat-core/internal/domain"
	"github.com/stafflink/go-chat-core/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HistoryService serves paginated chat history (oldest first).
type HistoryService struct {
	DB *gorm.DB

	// AssistantUserID is the reserved peer id whose thread is stored in the
	// requesting user's own name.
	AssistantUserID string
}

// DirectThreadPage returns one page of the conversation between userID and
// peerID. When peerID is the reserved assistant identity the user's assistant
// thread is returned instead.
func (s *HistoryService) DirectThreadPage(ctx context.Context, userID, peerID string, page, pageSize int) ([]domain.DirectMessage, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "DirectThreadPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("peer.id", peerID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	offset, limit := pageBounds(page, pageSize)
	db := s.DB.WithContext(ctx)

	if peerID == s.AssistantUserID && s.AssistantUserID != "" {
		total, err := repo.CountAssistantThread(db, userID)
		if err != nil {
			return nil, 0, err
		}
		if total == 0 {
			return []domain.DirectMessage{}, 0, nil
		}
		items, err := repo.ListAssistantThreadPage(db, userID, offset, limit)
		return items, total, err
	}

	total, err := repo.CountDirectThread(db, userID, peerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.DirectMessage{}, 0, nil
	}
	items, err := repo.ListDirectThreadPage(db, userID, peerID, offset, limit)
	return items, total, err
}

// GroupPage returns one page of a group's messages. Membership of any state
// of the group (active or not) is required; inactive groups stay readable.
func (s *HistoryService) GroupPage(ctx context.Context, groupID, userID string, page, pageSize int) ([]domain.GroupMessage, int64, error) {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "GroupPage",
		trace.WithAttributes(
			attribute.String("group.id", groupID),
			attribute.String("user.id", userID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	db := s.DB.WithContext(ctx)
	g, err := repo.GetGroup(db, groupID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, 0, ErrGroupNotFound
		}
		return nil, 0, err
	}
	if !g.IsMember(userID) {
		return nil, 0, ErrNotAMember
	}

	offset, limit := pageBounds(page, pageSize)
	total, err := repo.CountGroupMessages(db, groupID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.GroupMessage{}, 0, nil
	}
	items, err := repo.ListGroupMessagesPage(db, groupID, offset, limit)
	return items, total, err
}

// DeleteGroupMessage soft-deletes one group message, leaving a tombstone in
// the history. The sender may delete their own message; otherwise admin or
// owner rights are required.
func (s *HistoryService) DeleteGroupMessage(ctx context.Context, groupID, userID, messageID string) error {
	tr := otel.Tracer("services/HistoryService")
	ctx, span := tr.Start(ctx, "DeleteGroupMessage",
		trace.WithAttributes(
			attribute.String("group.id", groupID),
			attribute.String("user.id", userID),
			attribute.String("message.id", messageID),
		),
	)
	defer span.End()

	db := s.DB.WithContext(ctx)
	g, err := repo.GetGroup(db, groupID)
	if err != nil {
		if err == repo.ErrNotFound {
			return ErrGroupNotFound
		}
		return err
	}
	if !g.IsMember(userID) {
		return ErrNotAMember
	}

	m, err := repo.GetGroupMessage(db, messageID)
	if err != nil {
		if err == repo.ErrNotFound {
			return ErrMessageNotFound
		}
		return err
	}
	if m.GroupID != groupID {
		return ErrMessageNotFound
	}
	if m.SenderID != userID {
		switch g.MemberRole(userID) {
		case domain.RoleOwner, domain.RoleAdmin:
		default:
			return ErrPermissionDenied
		}
	}
	return repo.SoftDeleteGroupMessage(db, messageID)
}

// pageBounds clamps pagination inputs and converts them to offset/limit.
func pageBounds(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return (page - 1) * pageSize, pageSize
}
