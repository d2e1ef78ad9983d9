package services

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
	"github.com/atrium-collab/atrium/internal/repositories"
)

func testChatService(t *testing.T, defaults SettingsDefaults) *ChatService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatMember{},
		&models.ChatMessage{},
		&models.MessageReaction{},
		&models.MessageRead{},
		&models.PinnedMessage{},
		&models.ChatSettings{},
	)
	if err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewChatService(repositories.NewChatRepository(db), defaults)
}

func TestCreateChatSeedsDefaults(t *testing.T) {
	svc := testChatService(t, SettingsDefaults{SlowModeInterval: 10, MaxFileSize: 1 << 20})
	ctx := context.Background()

	cw, err := svc.CreateChat(ctx, 1, CreateChatInput{Name: "general"})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if cw.Chat.Kind != models.ChatKindGroup {
		t.Errorf("kind = %q, want group default", cw.Chat.Kind)
	}
	if cw.Settings.SlowModeInterval != 10 {
		t.Errorf("SlowModeInterval = %d, want seeded 10", cw.Settings.SlowModeInterval)
	}
	if cw.Settings.MaxFileSize != 1<<20 {
		t.Errorf("MaxFileSize = %d, want seeded %d", cw.Settings.MaxFileSize, 1<<20)
	}

	explicit, err := svc.CreateChat(ctx, 1, CreateChatInput{
		Name:     "announcements",
		Kind:     models.ChatKindChannel,
		Settings: models.ChatSettings{SlowModeInterval: 30},
	})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if explicit.Settings.SlowModeInterval != 30 {
		t.Errorf("SlowModeInterval = %d, explicit value must win", explicit.Settings.SlowModeInterval)
	}
}

func TestCreateChatValidation(t *testing.T) {
	svc := testChatService(t, SettingsDefaults{})
	ctx := context.Background()

	if _, err := svc.CreateChat(ctx, 1, CreateChatInput{}); chaterr.KindOf(err) != chaterr.InvalidArgument {
		t.Errorf("missing name: kind = %v, want invalid-argument", chaterr.KindOf(err))
	}
	if _, err := svc.CreateChat(ctx, 1, CreateChatInput{Name: "x", Kind: "board"}); chaterr.KindOf(err) != chaterr.InvalidArgument {
		t.Errorf("bad kind: kind = %v, want invalid-argument", chaterr.KindOf(err))
	}
}

func TestHistoryRequiresReadAccess(t *testing.T) {
	svc := testChatService(t, SettingsDefaults{})
	ctx := context.Background()

	cw, err := svc.CreateChat(ctx, 1, CreateChatInput{Name: "private", IsPrivate: true})
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}

	if _, err := svc.History(ctx, 1, cw.Chat.Id, 0, 0); err != nil {
		t.Errorf("owner history: %v", err)
	}
	_, err = svc.History(ctx, 99, cw.Chat.Id, 0, 0)
	if chaterr.KindOf(err) != chaterr.PermissionDenied {
		t.Errorf("outsider history: kind = %v, want permission-denied", chaterr.KindOf(err))
	}
}
