// Package domain defines the persistence models for the realtime chat core:
// direct messages, groups, group membership, and group messages. These types
// are mapped with GORM and shared across the repository, service, and router
// layers.
package domain

import (
	"time"
)

// Group member roles. Exactly one member of a group holds RoleOwner, and that
// member's id equals the group's OwnerID.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// DirectMessage is a one-to-one chat message. Rows are append-only.
//
// SenderID is nullable: a nil SenderID together with IsFromAssistant marks a
// message authored by the automated assistant. Assistant conversations are
// stored in the requesting user's own thread (RecipientID = that user).
type DirectMessage struct {
	ID              string    `json:"id"                gorm:"type:char(36);primaryKey"`
	SenderID        *string   `json:"sender_id"         gorm:"type:varchar(64);index:idx_dm_sender"`
	RecipientID     string    `json:"recipient_id"      gorm:"type:varchar(64);not null;index:idx_dm_recipient"`
	Text            string    `json:"text"              gorm:"type:text;not null"`
	IsFromAssistant bool      `json:"is_from_assistant" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"        gorm:"index:idx_dm_recipient,priority:2"`
}

// TableName returns the database table name for DirectMessage.
func (DirectMessage) TableName() string { return "direct_messages" }

// GroupSettings are the per-group permission toggles. They are embedded into
// the groups table as plain boolean columns.
type GroupSettings struct {
	OnlyAdminsCanSend       bool `json:"only_admins_can_send"        gorm:"not null;default:false"`
	OnlyAdminsCanAddMembers bool `json:"only_admins_can_add_members" gorm:"not null;default:false"`
	OnlyAdminsCanEditInfo   bool `json:"only_admins_can_edit_info"   gorm:"not null;default:false"`
}

// Group is a chat group. Groups are never hard-deleted: deletion flips Active
// to false so historical messages keep a valid parent.
//
// The LastMessage* columns are a denormalized summary of the most recent group
// message, maintained by the group message router for cheap conversation
// listings.
type Group struct {
	ID          string        `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string        `json:"name"        gorm:"type:varchar(255);not null"`
	Description string        `json:"description" gorm:"type:text"`
	OwnerID     string        `json:"owner_id"    gorm:"type:varchar(64);not null;index"`
	Settings    GroupSettings `json:"settings"    gorm:"embedded;embeddedPrefix:set_"`
	Active      bool          `json:"active"      gorm:"not null;default:true;index"`

	LastMessageText     string     `json:"last_message_text,omitempty"      gorm:"type:text"`
	LastMessageSenderID string     `json:"last_message_sender_id,omitempty" gorm:"type:varchar(64)"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Members is the ordered member list; ordering follows JoinedAt so the
	// ownership-transfer rules ("first remaining admin, else first remaining
	// member") are deterministic.
	Members []GroupMember `json:"members" gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "chat_groups" }

// GroupMember links a user to a group with a role. (GroupID, UserID) is
// unique: a user appears at most once per group.
type GroupMember struct {
	ID       uint      `json:"-"         gorm:"primaryKey;autoIncrement"`
	GroupID  string    `json:"-"         gorm:"type:char(36);not null;uniqueIndex:ux_group_user,priority:1"`
	UserID   string    `json:"user_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_group_user,priority:2"`
	Role     string    `json:"role"      gorm:"type:varchar(16);not null;default:'member';check:role IN ('owner','admin','member')"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
	AddedBy  string    `json:"added_by"  gorm:"type:varchar(64)"`
}

// TableName returns the database table name for GroupMember.
func (GroupMember) TableName() string { return "chat_group_members" }

// GroupMessage is a message sent into a group room. Rows are append-only;
// Deleted is a soft-delete flag so clients can render tombstones.
type GroupMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	GroupID   string    `json:"group_id"   gorm:"type:char(36);not null;index:idx_group_msgs,priority:1"`
	SenderID  string    `json:"sender_id"  gorm:"type:varchar(64);not null"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	Deleted   bool      `json:"deleted"    gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_group_msgs,priority:2"`

	Group Group `json:"-" gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for GroupMessage.
func (GroupMessage) TableName() string { return "chat_group_messages" }

// Member returns the membership record for userID, or nil.
func (g *Group) Member(userID string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// IsMember reports whether userID belongs to the group.
func (g *Group) IsMember(userID string) bool { return g.Member(userID) != nil }

// MemberRole returns the role of userID in the group, or "" for non-members.
func (g *Group) MemberRole(userID string) string {
	if m := g.Member(userID); m != nil {
		return m.Role
	}
	return ""
}

// isPrivileged reports whether role may act where admin rights are required.
func isPrivileged(role string) bool { return role == RoleOwner || role == RoleAdmin }

// CanSendMessage reports whether userID may post to the group under the
// current settings. Membership is assumed checked by the caller.
func (g *Group) CanSendMessage(userID string) bool {
	if !g.Settings.OnlyAdminsCanSend {
		return true
	}
	return isPrivileged(g.MemberRole(userID))
}

// CanAddMembers reports whether userID may add members to the group.
func (g *Group) CanAddMembers(userID string) bool {
	if !g.IsMember(userID) {
		return false
	}
	if !g.Settings.OnlyAdminsCanAddMembers {
		return true
	}
	return isPrivileged(g.MemberRole(userID))
}

// CanEditInfo reports whether userID may change the group's name,
// description, or settings.
func (g *Group) CanEditInfo(userID string) bool {
	if !g.IsMember(userID) {
		return false
	}
	if !g.Settings.OnlyAdminsCanEditInfo {
		return true
	}
	return isPrivileged(g.MemberRole(userID))
}
