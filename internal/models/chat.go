package models

import (
	"time"
)

type ChatKind string

const (
	ChatKindPrivate   ChatKind = "private"
	ChatKindGroup     ChatKind = "group"
	ChatKindChannel   ChatKind = "channel"
	ChatKindBroadcast ChatKind = "broadcast"
)

func (k ChatKind) Valid() bool {
	switch k {
	case ChatKindPrivate, ChatKindGroup, ChatKindChannel, ChatKindBroadcast:
		return true
	}
	return false
}

// Chat is one conversation. MemberCount, MessageCount and LastMessageAt
// are maintained transactionally alongside their source rows.
type Chat struct {
	Id            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Uuid          string     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Kind          ChatKind   `gorm:"type:varchar(16);not null;default:'group'" json:"kind"`
	Name          string     `gorm:"type:varchar(100)" json:"name"`
	Description   string     `gorm:"type:text" json:"description"`
	IsPrivate     bool       `gorm:"default:false" json:"is_private"`
	IsArchived    bool       `gorm:"default:false" json:"is_archived"`
	IsMuted       bool       `gorm:"default:false" json:"is_muted"`
	MemberCount   int        `gorm:"default:0" json:"member_count"`
	MessageCount  int64      `gorm:"default:0" json:"message_count"`
	LastMessageAt *time.Time `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
