package models

import (
	"time"
)

type MemberRole string

const (
	RoleOwner     MemberRole = "owner"
	RoleAdmin     MemberRole = "admin"
	RoleModerator MemberRole = "moderator"
	RoleMember    MemberRole = "member"
	RoleGuest     MemberRole = "guest"
)

func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleModerator, RoleMember, RoleGuest:
		return true
	}
	return false
}

// Rank orders roles for member listings; owner sorts first.
func (r MemberRole) Rank() int {
	switch r {
	case RoleOwner:
		return 0
	case RoleAdmin:
		return 1
	case RoleModerator:
		return 2
	case RoleMember:
		return 3
	case RoleGuest:
		return 4
	}
	return 5
}

// Privileged roles bypass slow mode and may pin messages.
func (r MemberRole) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleModerator
}

// ChatMember links a user to a chat. A banned member is always inactive.
type ChatMember struct {
	Id                   uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatId               uint       `gorm:"not null;index:idx_chat_member,unique" json:"chat_id"`
	UserId               uint       `gorm:"not null;index:idx_chat_member,unique" json:"user_id"`
	Role                 MemberRole `gorm:"type:varchar(16);not null;default:'member'" json:"role"`
	IsActive             bool       `gorm:"default:true" json:"is_active"`
	IsMuted              bool       `gorm:"default:false" json:"is_muted"`
	IsBanned             bool       `gorm:"default:false" json:"is_banned"`
	NotificationsEnabled bool       `gorm:"default:true" json:"notifications_enabled"`
	JoinedAt             time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	LastSeenAt           *time.Time `json:"last_seen_at"`
	LastReadAt           *time.Time `json:"last_read_at"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
