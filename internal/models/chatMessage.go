package models

import (
	"time"
)

type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindFile, MessageKindSystem:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusEdited    MessageStatus = "edited"
	MessageStatusDeleted   MessageStatus = "deleted"
)

// ChatMessage is append-only; edits mutate Content and set EditedAt,
// deletes tombstone the row in place. SentAt is non-decreasing within a
// chat in insertion order.
type ChatMessage struct {
	Id             uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Uuid           string        `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	ChatId         uint          `gorm:"not null;index;index:idx_chat_sent_at" json:"chat_id"`
	SenderId       uint          `gorm:"not null;index" json:"sender_id"`
	Kind           MessageKind   `gorm:"type:varchar(16);not null;default:'text'" json:"kind"`
	Content        string        `gorm:"type:text" json:"content"`
	Metadata       string        `gorm:"type:text" json:"metadata,omitempty"`
	Status         MessageStatus `gorm:"type:varchar(16);not null;default:'sent'" json:"status"`
	IsEdited       bool          `gorm:"default:false" json:"is_edited"`
	IsDeleted      bool          `gorm:"default:false" json:"is_deleted"`
	ReplyToId      *uint         `json:"reply_to_id,omitempty"`
	ForwardFromId  *uint         `json:"forward_from_id,omitempty"`
	IdempotencyKey string        `gorm:"type:varchar(64);index:idx_idempotency" json:"-"`
	SentAt         time.Time     `gorm:"not null;index:idx_chat_sent_at" json:"sent_at"`
	DeliveredAt    *time.Time    `json:"delivered_at,omitempty"`
	ReadAt         *time.Time    `json:"read_at,omitempty"`
	EditedAt       *time.Time    `json:"edited_at,omitempty"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageId" json:"reactions,omitempty"`
}
