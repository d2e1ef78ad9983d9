package models

import (
	"time"
)

// MessageReaction: a user contributes at most one instance of a given
// emoji per message.
type MessageReaction struct {
	Id        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageId uint      `gorm:"not null;index:idx_message_user_emoji,unique" json:"message_id"`
	UserId    uint      `gorm:"not null;index:idx_message_user_emoji,unique" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(32);not null;index:idx_message_user_emoji,unique" json:"emoji"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
