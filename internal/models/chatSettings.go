package models

import (
	"time"
)

// ChatSettings: one row per chat. SlowModeInterval is seconds between
// posts from the same non-privileged member; 0 disables slow mode.
// Version increments on every update so cached copies can be checked.
type ChatSettings struct {
	Id                   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatId               uint      `gorm:"not null;uniqueIndex" json:"chat_id"`
	AllowMemberInvites   bool      `gorm:"default:true" json:"allow_member_invites"`
	AllowMessageEditing  bool      `gorm:"default:true" json:"allow_message_editing"`
	AllowMessageDeletion bool      `gorm:"default:true" json:"allow_message_deletion"`
	AllowFileSharing     bool      `gorm:"default:true" json:"allow_file_sharing"`
	AllowReactions       bool      `gorm:"default:true" json:"allow_reactions"`
	MaxFileSize          int64     `gorm:"default:0" json:"max_file_size"`
	MaxMessageLength     int       `gorm:"default:0" json:"max_message_length"`
	SlowModeInterval     int       `gorm:"default:0" json:"slow_mode_interval"`
	AutoDeleteAfterDays  int       `gorm:"default:0" json:"auto_delete_after_days"`
	Version              int       `gorm:"default:1" json:"version"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Bounded reports whether the numeric limits are non-negative.
func (s *ChatSettings) Bounded() bool {
	return s.MaxFileSize >= 0 && s.MaxMessageLength >= 0 &&
		s.SlowModeInterval >= 0 && s.AutoDeleteAfterDays >= 0
}
