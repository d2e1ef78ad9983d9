package models

import (
	"time"
)

// PinnedMessage: the pinned set of a chat, one row per (chat, message).
type PinnedMessage struct {
	Id        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatId    uint      `gorm:"not null;index:idx_chat_message,unique" json:"chat_id"`
	MessageId uint      `gorm:"not null;index:idx_chat_message,unique" json:"message_id"`
	PinnedBy  uint      `gorm:"not null" json:"pinned_by"`
	PinnedAt  time.Time `gorm:"autoCreateTime" json:"pinned_at"`
}
