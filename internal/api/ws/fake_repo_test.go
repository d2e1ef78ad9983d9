package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
	"github.com/atrium-collab/atrium/internal/repositories"
)

type memberKey struct{ chatID, userID uint }

// fakeRepo is an in-memory ChatRepository for hub tests. It mirrors the
// real repository's contract: idempotent appends, set semantics for
// reactions and pins, and classified errors.
type fakeRepo struct {
	mu        sync.Mutex
	chats     map[uint]*repositories.ChatWithSettings
	members   map[memberKey]*models.ChatMember
	messages  map[uint]*models.ChatMessage
	idemKeys  map[string]uint // "chat/sender/key" -> message id
	reactions map[string]bool // "chat/msg/user/emoji"
	reads     map[string]bool // "msg/user"
	pins      map[string]bool // "chat/msg"
	nextMsgID uint

	// appendFailures makes the next N AppendMessage calls fail transiently.
	appendFailures int
	appendCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		chats:     make(map[uint]*repositories.ChatWithSettings),
		members:   make(map[memberKey]*models.ChatMember),
		messages:  make(map[uint]*models.ChatMessage),
		idemKeys:  make(map[string]uint),
		reactions: make(map[string]bool),
		reads:     make(map[string]bool),
		pins:      make(map[string]bool),
	}
}

func (f *fakeRepo) addChat(chatID uint, kind models.ChatKind, settings models.ChatSettings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[chatID] = &repositories.ChatWithSettings{
		Chat:     models.Chat{Id: chatID, Kind: kind},
		Settings: settings,
	}
}

func (f *fakeRepo) addMember(chatID, userID uint, role models.MemberRole) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[memberKey{chatID, userID}] = &models.ChatMember{
		ChatId: chatID, UserId: userID, Role: role, IsActive: true,
	}
}

func (f *fakeRepo) CreateChat(ctx context.Context, p repositories.CreateChatParams) (*repositories.ChatWithSettings, error) {
	return nil, chaterr.New(chaterr.Internal, "not used in hub tests")
}

func (f *fakeRepo) LoadChat(ctx context.Context, chatID uint) (*repositories.ChatWithSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cw, ok := f.chats[chatID]
	if !ok {
		return nil, chaterr.New(chaterr.NotFound, "no such chat")
	}
	copied := *cw
	return &copied, nil
}

func (f *fakeRepo) LoadMembership(ctx context.Context, chatID, userID uint) (*models.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberKey{chatID, userID}]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (f *fakeRepo) ListUserChats(ctx context.Context, userID uint) ([]repositories.ChatSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repositories.ChatSummary
	for key, m := range f.members {
		if key.userID == userID && m.IsActive {
			if cw, ok := f.chats[key.chatID]; ok {
				out = append(out, repositories.ChatSummary{Chat: cw.Chat})
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListChatMembers(ctx context.Context, chatID uint) ([]models.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMember
	for key, m := range f.members {
		if key.chatID == chatID && m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func idemKey(chatID, senderID uint, key string) string {
	return fmt.Sprintf("%d/%d/%s", chatID, senderID, key)
}

func (f *fakeRepo) AppendMessage(ctx context.Context, p repositories.AppendMessageParams) (*models.ChatMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls++
	if f.appendFailures > 0 {
		f.appendFailures--
		return nil, false, chaterr.New(chaterr.Transient, "deadlock")
	}
	if p.Content == "" {
		return nil, false, chaterr.New(chaterr.InvalidArgument, "empty message")
	}
	if p.MaxLength > 0 && len(p.Content) > p.MaxLength {
		return nil, false, chaterr.New(chaterr.InvalidArgument, "message too long")
	}
	if p.IdempotencyKey != "" {
		if id, ok := f.idemKeys[idemKey(p.ChatId, p.SenderId, p.IdempotencyKey)]; ok {
			return f.messages[id], false, nil
		}
	}
	f.nextMsgID++
	msg := &models.ChatMessage{
		Id:       f.nextMsgID,
		ChatId:   p.ChatId,
		SenderId: p.SenderId,
		Content:  p.Content,
		SentAt:   time.Now(),
	}
	f.messages[msg.Id] = msg
	if p.IdempotencyKey != "" {
		f.idemKeys[idemKey(p.ChatId, p.SenderId, p.IdempotencyKey)] = msg.Id
	}
	return msg, true, nil
}

func (f *fakeRepo) EditMessage(ctx context.Context, chatID, messageID uint, content string) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok || msg.ChatId != chatID {
		return nil, chaterr.New(chaterr.NotFound, "no such message")
	}
	msg.Content = content
	now := time.Now()
	msg.EditedAt = &now
	copied := *msg
	return &copied, nil
}

func (f *fakeRepo) SoftDeleteMessage(ctx context.Context, chatID, messageID uint) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok || msg.ChatId != chatID {
		return nil, chaterr.New(chaterr.NotFound, "no such message")
	}
	msg.Status = models.MessageStatusDeleted
	copied := *msg
	return &copied, nil
}

func (f *fakeRepo) LoadMessage(ctx context.Context, chatID, messageID uint) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok || msg.ChatId != chatID {
		return nil, chaterr.New(chaterr.NotFound, "no such message")
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeRepo) LoadMessages(ctx context.Context, chatID, beforeID uint, limit int) ([]models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeRepo) LastPostAt(ctx context.Context, chatID, userID uint) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, msg := range f.messages {
		if msg.ChatId == chatID && msg.SenderId == userID {
			if last == nil || msg.SentAt.After(*last) {
				t := msg.SentAt
				last = &t
			}
		}
	}
	return last, nil
}

func reactionKey(chatID, messageID, userID uint, emoji string) string {
	return fmt.Sprintf("%d/%d/%d/%s", chatID, messageID, userID, emoji)
}

func (f *fakeRepo) AddReaction(ctx context.Context, chatID, messageID, userID uint, emoji string) (*models.MessageReaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey(chatID, messageID, userID, emoji)
	if f.reactions[key] {
		return &models.MessageReaction{MessageId: messageID, UserId: userID, Emoji: emoji}, false, nil
	}
	f.reactions[key] = true
	return &models.MessageReaction{MessageId: messageID, UserId: userID, Emoji: emoji}, true, nil
}

func (f *fakeRepo) RemoveReaction(ctx context.Context, chatID, messageID, userID uint, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey(chatID, messageID, userID, emoji)
	if !f.reactions[key] {
		return false, nil
	}
	delete(f.reactions, key)
	return true, nil
}

func (f *fakeRepo) MarkRead(ctx context.Context, chatID, messageID, userID uint) (*models.MessageRead, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%d", messageID, userID)
	read := &models.MessageRead{MessageId: messageID, UserId: userID, ReadAt: time.Now()}
	if f.reads[key] {
		return read, false, nil
	}
	f.reads[key] = true
	return read, true, nil
}

func (f *fakeRepo) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	return map[uint]int64{}, nil
}

func (f *fakeRepo) Pin(ctx context.Context, chatID, messageID, pinnedBy uint) (*models.PinnedMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%d", chatID, messageID)
	pin := &models.PinnedMessage{ChatId: chatID, MessageId: messageID, PinnedBy: pinnedBy}
	if f.pins[key] {
		return pin, false, nil
	}
	f.pins[key] = true
	return pin, true, nil
}

func (f *fakeRepo) Unpin(ctx context.Context, chatID, messageID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%d", chatID, messageID)
	if !f.pins[key] {
		return false, nil
	}
	delete(f.pins, key)
	return true, nil
}

func (f *fakeRepo) ListPinned(ctx context.Context, chatID uint) ([]models.PinnedMessage, error) {
	return nil, nil
}

func (f *fakeRepo) AddMember(ctx context.Context, chatID, userID uint, role models.MemberRole) (*models.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := memberKey{chatID, userID}
	if m, ok := f.members[key]; ok && m.IsActive {
		copied := *m
		return &copied, nil
	}
	m := &models.ChatMember{ChatId: chatID, UserId: userID, Role: role, IsActive: true}
	f.members[key] = m
	copied := *m
	return &copied, nil
}

func (f *fakeRepo) RemoveMember(ctx context.Context, chatID, userID uint) (*models.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberKey{chatID, userID}]
	if !ok || !m.IsActive {
		return nil, chaterr.New(chaterr.NotFound, "not a member")
	}
	m.IsActive = false
	copied := *m
	return &copied, nil
}

func (f *fakeRepo) ChangeRole(ctx context.Context, chatID, userID uint, role models.MemberRole) (*models.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[memberKey{chatID, userID}]
	if !ok || !m.IsActive {
		return nil, chaterr.New(chaterr.NotFound, "not a member")
	}
	m.Role = role
	copied := *m
	return &copied, nil
}

func (f *fakeRepo) OwnerCount(ctx context.Context, chatID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, m := range f.members {
		if key.chatID == chatID && m.IsActive && m.Role == models.RoleOwner {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) UpdateSettings(ctx context.Context, chatID uint, patch repositories.SettingsPatch) (*models.ChatSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cw, ok := f.chats[chatID]
	if !ok {
		return nil, chaterr.New(chaterr.NotFound, "no such chat")
	}
	if patch.SlowModeInterval != nil {
		cw.Settings.SlowModeInterval = *patch.SlowModeInterval
	}
	if patch.AllowReactions != nil {
		cw.Settings.AllowReactions = *patch.AllowReactions
	}
	copied := cw.Settings
	return &copied, nil
}

func (f *fakeRepo) PurgeExpiredMessages(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeRepo) RemoveStaleMemberships(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}
