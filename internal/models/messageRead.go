package models

import (
	"time"
)

// MessageRead marks a message as read by a user. Reads are append-only;
// creating one for the newest message advances ChatMember.LastReadAt.
type MessageRead struct {
	Id        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageId uint      `gorm:"not null;index:idx_message_user,unique" json:"message_id"`
	UserId    uint      `gorm:"not null;index:idx_message_user,unique" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`
}
