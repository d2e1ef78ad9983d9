package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// idempotencyWindow bounds how far back a client-supplied post key is
// matched against existing messages.
const idempotencyWindow = 5 * time.Minute

type CreateChatParams struct {
	CreatorId   uint
	Kind        models.ChatKind
	Name        string
	Description string
	IsPrivate   bool
	Settings    models.ChatSettings
}

type AppendMessageParams struct {
	ChatId         uint
	SenderId       uint
	Kind           models.MessageKind
	Content        string
	Metadata       string
	ReplyToId      *uint
	ForwardFromId  *uint
	IdempotencyKey string
	// MaxLength is the effective cap for this chat (settings value or
	// server default). Zero means unlimited.
	MaxLength int
}

// SettingsPatch carries only the fields the caller wants to change.
type SettingsPatch struct {
	AllowMemberInvites   *bool
	AllowMessageEditing  *bool
	AllowMessageDeletion *bool
	AllowFileSharing     *bool
	AllowReactions       *bool
	MaxFileSize          *int64
	MaxMessageLength     *int
	SlowModeInterval     *int
	AutoDeleteAfterDays  *int
}

type ChatWithSettings struct {
	Chat     models.Chat
	Settings models.ChatSettings
}

type ChatSummary struct {
	Chat        models.Chat          `json:"chat"`
	LastMessage *models.ChatMessage  `json:"last_message,omitempty"`
	UnreadCount int64                `json:"unread_count"`
}

// ChatRepository is the narrow transactional surface the hub persists
// through. It never calls back into the hub or the registry.
type ChatRepository interface {
	CreateChat(ctx context.Context, p CreateChatParams) (*ChatWithSettings, error)
	LoadChat(ctx context.Context, chatID uint) (*ChatWithSettings, error)
	LoadMembership(ctx context.Context, chatID, userID uint) (*models.ChatMember, error)
	ListUserChats(ctx context.Context, userID uint) ([]ChatSummary, error)
	ListChatMembers(ctx context.Context, chatID uint) ([]models.ChatMember, error)

	AppendMessage(ctx context.Context, p AppendMessageParams) (msg *models.ChatMessage, created bool, err error)
	EditMessage(ctx context.Context, chatID, messageID uint, content string) (*models.ChatMessage, error)
	SoftDeleteMessage(ctx context.Context, chatID, messageID uint) (*models.ChatMessage, error)
	LoadMessage(ctx context.Context, chatID, messageID uint) (*models.ChatMessage, error)
	LoadMessages(ctx context.Context, chatID, beforeID uint, limit int) ([]models.ChatMessage, error)
	LastPostAt(ctx context.Context, chatID, userID uint) (*time.Time, error)

	AddReaction(ctx context.Context, chatID, messageID, userID uint, emoji string) (r *models.MessageReaction, created bool, err error)
	RemoveReaction(ctx context.Context, chatID, messageID, userID uint, emoji string) (removed bool, err error)
	MarkRead(ctx context.Context, chatID, messageID, userID uint) (read *models.MessageRead, created bool, err error)
	UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error)

	Pin(ctx context.Context, chatID, messageID, pinnedBy uint) (pin *models.PinnedMessage, created bool, err error)
	Unpin(ctx context.Context, chatID, messageID uint) (removed bool, err error)
	ListPinned(ctx context.Context, chatID uint) ([]models.PinnedMessage, error)

	AddMember(ctx context.Context, chatID, userID uint, role models.MemberRole) (*models.ChatMember, error)
	RemoveMember(ctx context.Context, chatID, userID uint) (*models.ChatMember, error)
	ChangeRole(ctx context.Context, chatID, userID uint, role models.MemberRole) (*models.ChatMember, error)
	OwnerCount(ctx context.Context, chatID uint) (int64, error)

	UpdateSettings(ctx context.Context, chatID uint, patch SettingsPatch) (*models.ChatSettings, error)

	PurgeExpiredMessages(ctx context.Context) (int64, error)
	RemoveStaleMemberships(ctx context.Context, olderThan time.Time) (int64, error)
}

type GormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *GormChatRepository { return &GormChatRepository{db: db} }

func (r *GormChatRepository) CreateChat(ctx context.Context, p CreateChatParams) (*ChatWithSettings, error) {
	if !p.Kind.Valid() {
		return nil, chaterr.Newf(chaterr.InvalidArgument, "unknown chat kind %q", p.Kind)
	}
	out := &ChatWithSettings{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat := models.Chat{
			Uuid:        uuid.NewString(),
			Kind:        p.Kind,
			Name:        p.Name,
			Description: p.Description,
			IsPrivate:   p.IsPrivate,
			MemberCount: 1,
		}
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		owner := models.ChatMember{
			ChatId:               chat.Id,
			UserId:               p.CreatorId,
			Role:                 models.RoleOwner,
			IsActive:             true,
			NotificationsEnabled: true,
			JoinedAt:             time.Now(),
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		settings := p.Settings
		settings.Id = 0
		settings.ChatId = chat.Id
		settings.Version = 1
		if !settings.Bounded() {
			return chaterr.New(chaterr.InvalidArgument, "settings limits must be non-negative")
		}
		if err := tx.Create(&settings).Error; err != nil {
			return err
		}
		out.Chat = chat
		out.Settings = settings
		return nil
	})
	if err != nil {
		return nil, classify("create chat", err)
	}
	return out, nil
}

func (r *GormChatRepository) LoadChat(ctx context.Context, chatID uint) (*ChatWithSettings, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, chatID).Error; err != nil {
		return nil, classify("load chat", err)
	}
	var settings models.ChatSettings
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&settings).Error; err != nil {
		return nil, classify("load chat settings", err)
	}
	return &ChatWithSettings{Chat: chat, Settings: settings}, nil
}

// LoadMembership returns (nil, nil) when the user has no row for the chat.
func (r *GormChatRepository) LoadMembership(ctx context.Context, chatID, userID uint) (*models.ChatMember, error) {
	var m models.ChatMember
	err := r.db.WithContext(ctx).Where("chat_id = ? AND user_id = ?", chatID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify("load membership", err)
	}
	return &m, nil
}

func (r *GormChatRepository) ListUserChats(ctx context.Context, userID uint) ([]ChatSummary, error) {
	var chats []models.Chat
	sub := r.db.Table("chat_members").
		Select("chat_id").
		Where("user_id = ? AND is_active = ?", userID, true)
	err := r.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, classify("list user chats", err)
	}

	unread, err := r.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		s := ChatSummary{Chat: chat, UnreadCount: unread[chat.Id]}
		var last models.ChatMessage
		err := r.db.WithContext(ctx).
			Where("chat_id = ? AND is_deleted = ?", chat.Id, false).
			Order("sent_at DESC").Order("id DESC").
			First(&last).Error
		if err == nil {
			s.LastMessage = &last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, classify("list user chats", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

func (r *GormChatRepository) ListChatMembers(ctx context.Context, chatID uint) ([]models.ChatMember, error) {
	var members []models.ChatMember
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("CASE role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'moderator' THEN 2 WHEN 'member' THEN 3 ELSE 4 END").
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, classify("list chat members", err)
	}
	return members, nil
}

func (r *GormChatRepository) AppendMessage(ctx context.Context, p AppendMessageParams) (*models.ChatMessage, bool, error) {
	if p.Kind == "" {
		p.Kind = models.MessageKindText
	}
	if !p.Kind.Valid() {
		return nil, false, chaterr.Newf(chaterr.InvalidArgument, "unknown message kind %q", p.Kind)
	}
	if p.Content == "" {
		return nil, false, chaterr.New(chaterr.InvalidArgument, "message content is empty")
	}
	if p.MaxLength > 0 && len(p.Content) > p.MaxLength {
		return nil, false, chaterr.New(chaterr.InvalidArgument, "message too long")
	}

	var msg models.ChatMessage
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, p.ChatId).Error; err != nil {
			return err
		}
		var member models.ChatMember
		if err := tx.Where("chat_id = ? AND user_id = ?", p.ChatId, p.SenderId).First(&member).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return chaterr.New(chaterr.PermissionDenied, "not a member of the chat")
			}
			return err
		}
		switch {
		case member.IsBanned:
			return chaterr.New(chaterr.PermissionDenied, "member is banned")
		case !member.IsActive:
			return chaterr.New(chaterr.PermissionDenied, "not a member of the chat")
		case member.IsMuted:
			return chaterr.New(chaterr.PermissionDenied, "member is muted")
		}

		var settings models.ChatSettings
		if err := tx.Where("chat_id = ?", p.ChatId).First(&settings).Error; err != nil {
			return err
		}

		now := time.Now()

		// Idempotent replay: same (chat, sender, key) inside the window
		// returns the original message without inserting.
		if p.IdempotencyKey != "" {
			var existing models.ChatMessage
			err := tx.Where(
				"chat_id = ? AND sender_id = ? AND idempotency_key = ? AND sent_at > ?",
				p.ChatId, p.SenderId, p.IdempotencyKey, now.Add(-idempotencyWindow),
			).First(&existing).Error
			if err == nil {
				msg = existing
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if settings.SlowModeInterval > 0 && !member.Role.Privileged() {
			var lastOwn models.ChatMessage
			err := tx.Where("chat_id = ? AND sender_id = ?", p.ChatId, p.SenderId).
				Order("sent_at DESC").Order("id DESC").
				First(&lastOwn).Error
			if err == nil {
				wait := time.Duration(settings.SlowModeInterval) * time.Second
				if now.Sub(lastOwn.SentAt) < wait {
					return chaterr.New(chaterr.Conflict, "slow mode: posting too fast")
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if p.ReplyToId != nil {
			var ref int64
			if err := tx.Model(&models.ChatMessage{}).
				Where("id = ? AND chat_id = ? AND is_deleted = ?", *p.ReplyToId, p.ChatId, false).
				Count(&ref).Error; err != nil {
				return err
			}
			if ref == 0 {
				return chaterr.New(chaterr.InvalidArgument, "reply_to references an unknown message")
			}
		}

		// SentAt never runs backwards within a chat, even under skew.
		sentAt := now
		if chat.LastMessageAt != nil && sentAt.Before(*chat.LastMessageAt) {
			sentAt = *chat.LastMessageAt
		}

		msg = models.ChatMessage{
			Uuid:           uuid.NewString(),
			ChatId:         p.ChatId,
			SenderId:       p.SenderId,
			Kind:           p.Kind,
			Content:        p.Content,
			Metadata:       p.Metadata,
			Status:         models.MessageStatusSent,
			ReplyToId:      p.ReplyToId,
			ForwardFromId:  p.ForwardFromId,
			IdempotencyKey: p.IdempotencyKey,
			SentAt:         sentAt,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		created = true

		return tx.Model(&chat).Updates(map[string]any{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": sentAt,
		}).Error
	})
	if err != nil {
		return nil, false, classify("append message", err)
	}
	return &msg, created, nil
}

func (r *GormChatRepository) EditMessage(ctx context.Context, chatID, messageID uint, content string) (*models.ChatMessage, error) {
	if content == "" {
		return nil, chaterr.New(chaterr.InvalidArgument, "message content is empty")
	}
	var msg models.ChatMessage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND chat_id = ?", messageID, chatID).First(&msg).Error; err != nil {
			return err
		}
		if msg.IsDeleted {
			return chaterr.New(chaterr.NotFound, "message is deleted")
		}
		now := time.Now()
		msg.Content = content
		msg.IsEdited = true
		msg.EditedAt = &now
		msg.Status = models.MessageStatusEdited
		return tx.Save(&msg).Error
	})
	if err != nil {
		return nil, classify("edit message", err)
	}
	return &msg, nil
}

func (r *GormChatRepository) SoftDeleteMessage(ctx context.Context, chatID, messageID uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND chat_id = ?", messageID, chatID).First(&msg).Error; err != nil {
			return err
		}
		if msg.IsDeleted {
			return nil // tombstoning twice is a no-op
		}
		msg.IsDeleted = true
		msg.Content = ""
		msg.Metadata = ""
		msg.Status = models.MessageStatusDeleted
		if err := tx.Save(&msg).Error; err != nil {
			return err
		}
		return recountChat(tx, chatID)
	})
	if err != nil {
		return nil, classify("delete message", err)
	}
	return &msg, nil
}

// recountChat re-derives message_count and last_message_at from the
// non-deleted log.
func recountChat(tx *gorm.DB, chatID uint) error {
	var count int64
	if err := tx.Model(&models.ChatMessage{}).
		Where("chat_id = ? AND is_deleted = ?", chatID, false).
		Count(&count).Error; err != nil {
		return err
	}
	var newest models.ChatMessage
	var lastAt *time.Time
	err := tx.Where("chat_id = ? AND is_deleted = ?", chatID, false).
		Order("sent_at DESC").Order("id DESC").
		First(&newest).Error
	if err == nil {
		lastAt = &newest.SentAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Model(&models.Chat{}).Where("id = ?", chatID).Updates(map[string]any{
		"message_count":   count,
		"last_message_at": lastAt,
	}).Error
}

func (r *GormChatRepository) LoadMessage(ctx context.Context, chatID, messageID uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("id = ? AND chat_id = ?", messageID, chatID).
		First(&msg).Error
	if err != nil {
		return nil, classify("load message", err)
	}
	return &msg, nil
}

// LoadMessages returns a newest-first page of non-deleted messages with
// reactions eagerly attached. beforeID of 0 starts from the newest.
func (r *GormChatRepository) LoadMessages(ctx context.Context, chatID, beforeID uint, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("chat_id = ? AND is_deleted = ?", chatID, false)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var messages []models.ChatMessage
	err := q.Order("sent_at DESC").Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, classify("load messages", err)
	}
	return messages, nil
}

func (r *GormChatRepository) LastPostAt(ctx context.Context, chatID, userID uint) (*time.Time, error) {
	var msg models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND sender_id = ?", chatID, userID).
		Order("sent_at DESC").Order("id DESC").
		First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify("last post at", err)
	}
	return &msg.SentAt, nil
}

func (r *GormChatRepository) AddReaction(ctx context.Context, chatID, messageID, userID uint, emoji string) (*models.MessageReaction, bool, error) {
	if emoji == "" {
		return nil, false, chaterr.New(chaterr.InvalidArgument, "emoji is empty")
	}
	var reaction models.MessageReaction
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ref int64
		if err := tx.Model(&models.ChatMessage{}).
			Where("id = ? AND chat_id = ? AND is_deleted = ?", messageID, chatID, false).
			Count(&ref).Error; err != nil {
			return err
		}
		if ref == 0 {
			return chaterr.New(chaterr.NotFound, "message not found")
		}
		err := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
			First(&reaction).Error
		if err == nil {
			return nil // duplicate add is an idempotent no-op
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		reaction = models.MessageReaction{MessageId: messageID, UserId: userID, Emoji: emoji}
		if err := tx.Create(&reaction).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, classify("add reaction", err)
	}
	return &reaction, created, nil
}

func (r *GormChatRepository) RemoveReaction(ctx context.Context, chatID, messageID, userID uint, emoji string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{})
	if res.Error != nil {
		return false, classify("remove reaction", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormChatRepository) MarkRead(ctx context.Context, chatID, messageID, userID uint) (*models.MessageRead, bool, error) {
	var read models.MessageRead
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.ChatMessage
		if err := tx.Where("id = ? AND chat_id = ?", messageID, chatID).First(&msg).Error; err != nil {
			return err
		}
		err := tx.Where("message_id = ? AND user_id = ?", messageID, userID).First(&read).Error
		if err == nil {
			return nil // reads are a set
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now()
		read = models.MessageRead{MessageId: messageID, UserId: userID, ReadAt: now}
		if err := tx.Create(&read).Error; err != nil {
			return err
		}
		created = true

		// LastReadAt only moves forward.
		var member models.ChatMember
		if err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error; err != nil {
			return err
		}
		if member.LastReadAt == nil || member.LastReadAt.Before(now) {
			member.LastReadAt = &now
			member.LastSeenAt = &now
			if err := tx.Save(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, classify("mark read", err)
	}
	return &read, created, nil
}

func (r *GormChatRepository) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	var members []models.ChatMember
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&members).Error
	if err != nil {
		return nil, classify("unread counts", err)
	}
	counts := make(map[uint]int64, len(members))
	for _, m := range members {
		q := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
			Where("chat_id = ? AND is_deleted = ? AND sender_id <> ?", m.ChatId, false, userID)
		if m.LastReadAt != nil {
			q = q.Where("sent_at > ?", *m.LastReadAt)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			return nil, classify("unread counts", err)
		}
		counts[m.ChatId] = n
	}
	return counts, nil
}

func (r *GormChatRepository) Pin(ctx context.Context, chatID, messageID, pinnedBy uint) (*models.PinnedMessage, bool, error) {
	var pin models.PinnedMessage
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ref int64
		if err := tx.Model(&models.ChatMessage{}).
			Where("id = ? AND chat_id = ? AND is_deleted = ?", messageID, chatID, false).
			Count(&ref).Error; err != nil {
			return err
		}
		if ref == 0 {
			return chaterr.New(chaterr.NotFound, "message not found")
		}
		err := tx.Where("chat_id = ? AND message_id = ?", chatID, messageID).First(&pin).Error
		if err == nil {
			return nil // pins are a set
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		pin = models.PinnedMessage{ChatId: chatID, MessageId: messageID, PinnedBy: pinnedBy, PinnedAt: time.Now()}
		if err := tx.Create(&pin).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, classify("pin", err)
	}
	return &pin, created, nil
}

func (r *GormChatRepository) Unpin(ctx context.Context, chatID, messageID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, messageID).
		Delete(&models.PinnedMessage{})
	if res.Error != nil {
		return false, classify("unpin", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormChatRepository) ListPinned(ctx context.Context, chatID uint) ([]models.PinnedMessage, error) {
	var pins []models.PinnedMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("pinned_at ASC").
		Find(&pins).Error
	if err != nil {
		return nil, classify("list pinned", err)
	}
	return pins, nil
}

func (r *GormChatRepository) AddMember(ctx context.Context, chatID, userID uint, role models.MemberRole) (*models.ChatMember, error) {
	if !role.Valid() || role == models.RoleOwner {
		return nil, chaterr.Newf(chaterr.InvalidArgument, "cannot add member with role %q", role)
	}
	var member models.ChatMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, chatID).Error; err != nil {
			return err
		}
		err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error
		if err == nil {
			if member.IsBanned {
				return chaterr.New(chaterr.Conflict, "member is banned")
			}
			if member.IsActive {
				return chaterr.New(chaterr.Conflict, "already a member")
			}
			member.IsActive = true
			member.Role = role
			now := time.Now()
			member.JoinedAt = now
			if err := tx.Save(&member).Error; err != nil {
				return err
			}
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			member = models.ChatMember{
				ChatId:   chatID,
				UserId:   userID,
				Role:     role,
				IsActive: true,
				NotificationsEnabled: true,
				JoinedAt: time.Now(),
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		} else {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chatID).
			Update("member_count", gorm.Expr("member_count + 1")).Error
	})
	if err != nil {
		return nil, classify("add member", err)
	}
	return &member, nil
}

// RemoveMember deactivates the membership. When the last owner leaves the
// chat is archived rather than deleted; the hub rejects removals that
// would strand the chat before calling this.
func (r *GormChatRepository) RemoveMember(ctx context.Context, chatID, userID uint) (*models.ChatMember, error) {
	var member models.ChatMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error; err != nil {
			return err
		}
		if !member.IsActive {
			return chaterr.New(chaterr.NotFound, "not an active member")
		}
		wasOwner := member.Role == models.RoleOwner
		member.IsActive = false
		if wasOwner {
			member.Role = models.RoleMember
		}
		if err := tx.Save(&member).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Chat{}).Where("id = ?", chatID).
			Update("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
			return err
		}
		if wasOwner {
			var owners int64
			if err := tx.Model(&models.ChatMember{}).
				Where("chat_id = ? AND role = ? AND is_active = ?", chatID, models.RoleOwner, true).
				Count(&owners).Error; err != nil {
				return err
			}
			if owners == 0 {
				return tx.Model(&models.Chat{}).Where("id = ?", chatID).
					Update("is_archived", true).Error
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("remove member", err)
	}
	return &member, nil
}

func (r *GormChatRepository) ChangeRole(ctx context.Context, chatID, userID uint, role models.MemberRole) (*models.ChatMember, error) {
	if !role.Valid() {
		return nil, chaterr.Newf(chaterr.InvalidArgument, "unknown role %q", role)
	}
	var member models.ChatMember
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND user_id = ? AND is_active = ?", chatID, userID, true).
			First(&member).Error; err != nil {
			return err
		}
		member.Role = role
		return tx.Save(&member).Error
	})
	if err != nil {
		return nil, classify("change role", err)
	}
	return &member, nil
}

func (r *GormChatRepository) OwnerCount(ctx context.Context, chatID uint) (int64, error) {
	var owners int64
	err := r.db.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND role = ? AND is_active = ?", chatID, models.RoleOwner, true).
		Count(&owners).Error
	if err != nil {
		return 0, classify("owner count", err)
	}
	return owners, nil
}

func (r *GormChatRepository) UpdateSettings(ctx context.Context, chatID uint, patch SettingsPatch) (*models.ChatSettings, error) {
	var settings models.ChatSettings
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).First(&settings).Error; err != nil {
			return err
		}
		if patch.AllowMemberInvites != nil {
			settings.AllowMemberInvites = *patch.AllowMemberInvites
		}
		if patch.AllowMessageEditing != nil {
			settings.AllowMessageEditing = *patch.AllowMessageEditing
		}
		if patch.AllowMessageDeletion != nil {
			settings.AllowMessageDeletion = *patch.AllowMessageDeletion
		}
		if patch.AllowFileSharing != nil {
			settings.AllowFileSharing = *patch.AllowFileSharing
		}
		if patch.AllowReactions != nil {
			settings.AllowReactions = *patch.AllowReactions
		}
		if patch.MaxFileSize != nil {
			settings.MaxFileSize = *patch.MaxFileSize
		}
		if patch.MaxMessageLength != nil {
			settings.MaxMessageLength = *patch.MaxMessageLength
		}
		if patch.SlowModeInterval != nil {
			settings.SlowModeInterval = *patch.SlowModeInterval
		}
		if patch.AutoDeleteAfterDays != nil {
			settings.AutoDeleteAfterDays = *patch.AutoDeleteAfterDays
		}
		if !settings.Bounded() {
			return chaterr.New(chaterr.InvalidArgument, "settings limits must be non-negative")
		}
		settings.Version++
		return tx.Save(&settings).Error
	})
	if err != nil {
		return nil, classify("update settings", err)
	}
	return &settings, nil
}

// PurgeExpiredMessages hard-deletes tombstones and expired messages in
// chats with auto-delete configured, then repairs the chat counters.
func (r *GormChatRepository) PurgeExpiredMessages(ctx context.Context) (int64, error) {
	var all []models.ChatSettings
	err := r.db.WithContext(ctx).
		Where("auto_delete_after_days > 0").
		Find(&all).Error
	if err != nil {
		return 0, classify("purge expired", err)
	}
	var purged int64
	for _, settings := range all {
		cutoff := time.Now().AddDate(0, 0, -settings.AutoDeleteAfterDays)
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Where("chat_id = ? AND sent_at < ?", settings.ChatId, cutoff).
				Delete(&models.ChatMessage{})
			if res.Error != nil {
				return res.Error
			}
			purged += res.RowsAffected
			if res.RowsAffected > 0 {
				return recountChat(tx, settings.ChatId)
			}
			return nil
		})
		if err != nil {
			return purged, classify("purge expired", err)
		}
	}
	return purged, nil
}

// RemoveStaleMemberships drops long-inactive or banned member rows.
func (r *GormChatRepository) RemoveStaleMemberships(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("updated_at < ? AND (is_banned = ? OR is_active = ?)", olderThan, true, false).
		Delete(&models.ChatMember{})
	if res.Error != nil {
		return 0, classify("remove stale memberships", res.Error)
	}
	return res.RowsAffected, nil
}
