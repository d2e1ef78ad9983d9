package services

import (
	"context"

	"github.com/atrium-collab/atrium/internal/authority"
	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
	"github.com/atrium-collab/atrium/internal/repositories"
)

// SettingsDefaults seed the settings row of a new chat where the
// creator left a limit at zero.
type SettingsDefaults struct {
	SlowModeInterval int
	MaxFileSize      int64
}

// ChatService is the REST-facing read side plus chat creation. Anything
// that mutates an existing chat goes through the hub so it serializes
// with the websocket commands.
type ChatService struct {
	chats    repositories.ChatRepository
	defaults SettingsDefaults
}

func NewChatService(chats repositories.ChatRepository, defaults SettingsDefaults) *ChatService {
	return &ChatService{chats: chats, defaults: defaults}
}

type CreateChatInput struct {
	Kind        models.ChatKind
	Name        string
	Description string
	IsPrivate   bool
	Settings    models.ChatSettings
}

func (s *ChatService) CreateChat(ctx context.Context, creatorID uint, in CreateChatInput) (*repositories.ChatWithSettings, error) {
	if in.Name == "" {
		return nil, chaterr.New(chaterr.InvalidArgument, "chat name is required")
	}
	if in.Kind == "" {
		in.Kind = models.ChatKindGroup
	}
	if !in.Kind.Valid() {
		return nil, chaterr.Newf(chaterr.InvalidArgument, "unknown chat kind %q", in.Kind)
	}
	if in.Settings.SlowModeInterval == 0 {
		in.Settings.SlowModeInterval = s.defaults.SlowModeInterval
	}
	if in.Settings.MaxFileSize == 0 {
		in.Settings.MaxFileSize = s.defaults.MaxFileSize
	}
	return s.chats.CreateChat(ctx, repositories.CreateChatParams{
		CreatorId:   creatorID,
		Kind:        in.Kind,
		Name:        in.Name,
		Description: in.Description,
		IsPrivate:   in.IsPrivate,
		Settings:    in.Settings,
	})
}

func (s *ChatService) ListChats(ctx context.Context, userID uint) ([]repositories.ChatSummary, error) {
	return s.chats.ListUserChats(ctx, userID)
}

// readGate loads the chat and applies the read predicate for userID.
func (s *ChatService) readGate(ctx context.Context, chatID, userID uint) (*repositories.ChatWithSettings, error) {
	cw, err := s.chats.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	member, err := s.chats.LoadMembership(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if d := authority.CanRead(&cw.Chat, member); !d.Allowed {
		return nil, chaterr.New(d.Kind, d.Predicate+": "+d.Reason)
	}
	return cw, nil
}

// History returns messages newest first, paginated by beforeID.
func (s *ChatService) History(ctx context.Context, userID, chatID, beforeID uint, limit int) ([]models.ChatMessage, error) {
	if _, err := s.readGate(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.chats.LoadMessages(ctx, chatID, beforeID, limit)
}

func (s *ChatService) GetChat(ctx context.Context, userID, chatID uint) (*repositories.ChatWithSettings, error) {
	return s.readGate(ctx, chatID, userID)
}

func (s *ChatService) Members(ctx context.Context, userID, chatID uint) ([]models.ChatMember, error) {
	if _, err := s.readGate(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.chats.ListChatMembers(ctx, chatID)
}

func (s *ChatService) Pinned(ctx context.Context, userID, chatID uint) ([]models.PinnedMessage, error) {
	if _, err := s.readGate(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.chats.ListPinned(ctx, chatID)
}

func (s *ChatService) UnreadCounts(ctx context.Context, userID uint) (map[uint]int64, error) {
	return s.chats.UnreadCounts(ctx, userID)
}
