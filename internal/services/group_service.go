// Package services – GroupService
//
// This file implements GroupService, the application-level component that owns
// group lifecycle and membership. It enforces the structural invariants the
// rest of the system relies on: exactly one owner per group, no duplicate
// members, soft deletion only, and ownership transfer when the owner leaves.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include group/actor identifiers.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/stafflink/go-chat-core/internal/domain"
	"github.com/stafflink/go-chat-core/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Directory answers whether a user id refers to an active account. The user
// store itself lives in the employee-management system; the chat core only
// consults it when adding members.
type Directory interface {
	ActiveUser(ctx context.Context, userID string) bool
}

// GroupService coordinates group persistence and membership rules.
type GroupService struct {
	DB *gorm.DB

	// Users is optional; when nil every id is treated as active.
	Users Directory

	// Name casing config
	NameLocale language.Tag
	NameMaxLen int
}

// LeaveResult describes the outcome of a Leave call.
type LeaveResult struct {
	// NewOwnerID is set when ownership transferred to another member.
	NewOwnerID string
	// Deactivated is true when the last member left and the group was
	// marked inactive.
	Deactivated bool
}

// CreateGroup creates a group owned by ownerID, with the owner as the first
// member. The name is trimmed and title-cased.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID, name, description string, settings domain.GroupSettings) (*domain.Group, error) {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "CreateGroup",
		trace.WithAttributes(attribute.String("user.id", ownerID)),
	)
	defer span.End()

	name = s.normalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	return repo.CreateGroup(s.DB.WithContext(ctx), name, strings.TrimSpace(description), ownerID, settings)
}

// AddMembers adds the given user ids as plain members. Ids already present,
// blank ids, and ids the Directory reports inactive are silently skipped.
// Returns the ids actually added.
func (s *GroupService) AddMembers(ctx context.Context, groupID, actorID string, memberIDs []string) ([]string, error) {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "AddMembers",
		trace.WithAttributes(
			attribute.String("group.id", groupID),
			attribute.String("user.id", actorID),
			attribute.Int("member_count", len(memberIDs)),
		),
	)
	defer span.End()

	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.CanAddMembers(actorID) {
		if !g.IsMember(actorID) {
			return nil, ErrNotAMember
		}
		return nil, ErrPermissionDenied
	}

	added := make([]string, 0, len(memberIDs))
	seen := make(map[string]struct{}, len(memberIDs))
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range memberIDs {
			id = strings.TrimSpace(id)
			if id == "" || g.IsMember(id) {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if s.Users != nil && !s.Users.ActiveUser(ctx, id) {
				continue
			}
			if err := repo.AddGroupMember(tx, groupID, id, domain.RoleMember, actorID); err != nil {
				return err
			}
			added = append(added, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveMember removes memberID from the group. The owner can never be
// removed this way; removing oneself is always permitted; removing anyone
// else requires admin or owner rights.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, memberID string) error {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "RemoveMember",
		trace.WithAttributes(
			attribute.String("group.id", groupID),
			attribute.String("user.id", actorID),
			attribute.String("member.id", memberID),
		),
	)
	defer span.End()

	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	target := g.Member(memberID)
	if target == nil {
		return ErrNotAMember
	}
	if target.Role == domain.RoleOwner {
		return ErrOwnerImmutable
	}
	if actorID != memberID {
		switch g.MemberRole(actorID) {
		case domain.RoleOwner, domain.RoleAdmin:
		case "":
			return ErrNotAMember
		default:
			return ErrPermissionDenied
		}
	}
	return repo.RemoveGroupMember(s.DB.WithContext(ctx), groupID, memberID)
}

// Leave removes userID from the group. A leaving owner hands the group to the
// first remaining admin, else the first remaining member (member order is
// join time); with nobody left the group is deactivated.
func (s *GroupService) Leave(ctx context.Context, groupID, userID string) (*LeaveResult, error) {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "Leave",
		trace.WithAttributes(
			attribute.String("group.id", groupID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	leaver := g.Member(userID)
	if leaver == nil {
		return nil, ErrNotAMember
	}

	res := &LeaveResult{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if leaver.Role == domain.RoleOwner {
			heir := pickHeir(g.Members, userID)
			if heir == "" {
				if err := repo.DeactivateGroup(tx, groupID); err != nil {
					return err
				}
				res.Deactivated = true
			} else {
				if err := repo.UpdateMemberRole(tx, groupID, heir, domain.RoleOwner); err != nil {
					return err
				}
				if err := repo.UpdateGroupOwner(tx, groupID, heir); err != nil {
					return err
				}
				res.NewOwnerID = heir
			}
		}
		return repo.RemoveGroupMember(tx, groupID, userID)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// pickHeir returns the first remaining admin, else the first remaining
// member, else "". Members are assumed ordered by join time.
func pickHeir(members []domain.GroupMember, leavingID string) string {
	for _, m := range members {
		if m.UserID != leavingID && m.Role == domain.RoleAdmin {
			return m.UserID
		}
	}
	for _, m := range members {
		if m.UserID != leavingID {
			return m.UserID
		}
	}
	return ""
}

// ChangeRole promotes or demotes memberID between admin and member. Only the
// owner may do this, and the owner's own role is immutable here.
func (s *GroupService) ChangeRole(ctx context.Context, groupID, actorID, memberID, role string) error {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "ChangeRole",
		trace.WithAttributes(
			attribute.String("group.id", groupID),
			attribute.String("member.id", memberID),
			attribute.String("role", role),
		),
	)
	defer span.End()

	if role != domain.RoleAdmin && role != domain.RoleMember {
		return ErrInvalidRole
	}
	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.MemberRole(actorID) != domain.RoleOwner {
		return ErrPermissionDenied
	}
	target := g.Member(memberID)
	if target == nil {
		return ErrNotAMember
	}
	if target.Role == domain.RoleOwner {
		return ErrOwnerImmutable
	}
	return repo.UpdateMemberRole(s.DB.WithContext(ctx), groupID, memberID, role)
}

// UpdateInfo changes the group's name and description, subject to the
// onlyAdminsCanEditInfo setting.
func (s *GroupService) UpdateInfo(ctx context.Context, groupID, actorID, name, description string) error {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "UpdateInfo",
		trace.WithAttributes(attribute.String("group.id", groupID)),
	)
	defer span.End()

	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.CanEditInfo(actorID) {
		if !g.IsMember(actorID) {
			return ErrNotAMember
		}
		return ErrPermissionDenied
	}
	name = s.normalizeName(name)
	if name == "" {
		return ErrEmptyName
	}
	return repo.UpdateGroupInfo(s.DB.WithContext(ctx), groupID, name, strings.TrimSpace(description))
}

// UpdateSettings replaces the permission toggles, subject to the
// onlyAdminsCanEditInfo setting.
func (s *GroupService) UpdateSettings(ctx context.Context, groupID, actorID string, settings domain.GroupSettings) error {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "UpdateSettings",
		trace.WithAttributes(attribute.String("group.id", groupID)),
	)
	defer span.End()

	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.CanEditInfo(actorID) {
		if !g.IsMember(actorID) {
			return ErrNotAMember
		}
		return ErrPermissionDenied
	}
	return repo.UpdateGroupSettings(s.DB.WithContext(ctx), groupID, settings)
}

// DeleteGroup marks the group inactive. Only the owner may delete, and
// history is preserved.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, actorID string) error {
	tr := otel.Tracer("services/GroupService")
	ctx, span := tr.Start(ctx, "DeleteGroup",
		trace.WithAttributes(attribute.String("group.id", groupID)),
	)
	defer span.End()

	g, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID != actorID {
		return ErrPermissionDenied
	}
	return repo.DeactivateGroup(s.DB.WithContext(ctx), groupID)
}

// GetGroup returns a group (with members) visible to the given member.
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID string) (*domain.Group, error) {
	g, err := repo.GetGroup(s.DB.WithContext(ctx), groupID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if !g.IsMember(userID) {
		return nil, ErrNotAMember
	}
	return g, nil
}

// ListGroups returns the active groups the user belongs to.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]domain.Group, error) {
	return repo.ListActiveGroupsByMember(s.DB.WithContext(ctx), userID)
}

// activeGroup loads a group and rejects writes against inactive ones.
func (s *GroupService) activeGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	g, err := repo.GetGroup(s.DB.WithContext(ctx), groupID)
	if err != nil {
		if err == repo.ErrNotFound {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if !g.Active {
		return nil, ErrGroupInactive
	}
	return g, nil
}

// normalizeName trims, collapses whitespace, title-cases, and clips a group name.
func (s *GroupService) normalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	caser := cases.Title(s.nameLocaleOrDefault(), cases.NoLower)
	name = caser.String(name)
	max := s.NameMaxLen
	if max <= 0 {
		max = 80
	}
	if runes := []rune(name); len(runes) > max {
		name = string(runes[:max])
	}
	return name
}

func (s *GroupService) nameLocaleOrDefault() language.Tag {
	if s.NameLocale == language.Und {
		return language.English
	}
	return s.NameLocale
}
