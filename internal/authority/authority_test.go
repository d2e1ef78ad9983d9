package authority

import (
	"testing"
	"time"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
)

func member(role models.MemberRole) *models.ChatMember {
	return &models.ChatMember{UserId: 1, ChatId: 1, Role: role, IsActive: true}
}

func openSettings() *models.ChatSettings {
	return &models.ChatSettings{
		AllowMessageEditing:  true,
		AllowMessageDeletion: true,
		AllowReactions:       true,
	}
}

func TestCanRead(t *testing.T) {
	tests := []struct {
		name    string
		chat    models.Chat
		member  *models.ChatMember
		allowed bool
	}{
		{"active member", models.Chat{Kind: models.ChatKindGroup}, member(models.RoleMember), true},
		{"non-member of group", models.Chat{Kind: models.ChatKindGroup}, nil, false},
		{"non-member of public channel", models.Chat{Kind: models.ChatKindChannel}, nil, true},
		{"non-member of private channel", models.Chat{Kind: models.ChatKindChannel, IsPrivate: true}, nil, false},
		{"banned member", models.Chat{Kind: models.ChatKindGroup}, &models.ChatMember{IsActive: true, IsBanned: true}, false},
		{"inactive member", models.Chat{Kind: models.ChatKindGroup}, &models.ChatMember{IsActive: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRead(&tt.chat, tt.member); got.Allowed != tt.allowed {
				t.Errorf("CanRead() = %v (%s), want %v", got.Allowed, got.Reason, tt.allowed)
			}
		})
	}
}

func TestCanPostSlowMode(t *testing.T) {
	now := time.Now()
	recent := now.Add(-2 * time.Second)
	old := now.Add(-time.Minute)
	settings := &models.ChatSettings{SlowModeInterval: 10}

	tests := []struct {
		name    string
		member  *models.ChatMember
		last    *time.Time
		allowed bool
	}{
		{"first post", member(models.RoleMember), nil, true},
		{"too fast", member(models.RoleMember), &recent, false},
		{"interval elapsed", member(models.RoleMember), &old, true},
		{"moderator bypasses slow mode", member(models.RoleModerator), &recent, true},
		{"owner bypasses slow mode", member(models.RoleOwner), &recent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanPost(settings, tt.member, tt.last, now); got.Allowed != tt.allowed {
				t.Errorf("CanPost() = %v (%s), want %v", got.Allowed, got.Reason, tt.allowed)
			}
		})
	}
}

// Denial kinds are part of the contract: state races are conflicts,
// privilege failures are permission denials.
func TestDecisionKinds(t *testing.T) {
	now := time.Now()
	recent := now.Add(-2 * time.Second)
	settings := &models.ChatSettings{SlowModeInterval: 10}

	if got := CanPost(settings, member(models.RoleMember), &recent, now); got.Kind != chaterr.Conflict {
		t.Errorf("slow-mode denial kind = %v, want conflict", got.Kind)
	}
	if got := CanPost(settings, nil, nil, now); got.Kind != chaterr.PermissionDenied {
		t.Errorf("non-member denial kind = %v, want permission-denied", got.Kind)
	}

	owner := member(models.RoleOwner)
	admin := member(models.RoleAdmin)
	admin.UserId = 2
	if got := CanRemoveMember(admin, owner, 1); got.Kind != chaterr.Conflict {
		t.Errorf("last-owner denial kind = %v, want conflict", got.Kind)
	}
	if got := CanRemoveMember(admin, owner, 2); got.Kind != chaterr.PermissionDenied {
		t.Errorf("owner-immunity denial kind = %v, want permission-denied", got.Kind)
	}
}

func TestCanPostMuted(t *testing.T) {
	m := member(models.RoleMember)
	m.IsMuted = true
	if got := CanPost(openSettings(), m, nil, time.Now()); got.Allowed {
		t.Error("muted member should not post")
	}
}

func TestCanEdit(t *testing.T) {
	msg := &models.ChatMessage{SenderId: 1}
	otherMsg := &models.ChatMessage{SenderId: 2}

	if got := CanEdit(openSettings(), member(models.RoleMember), msg); !got.Allowed {
		t.Errorf("sender should edit own message: %s", got.Reason)
	}
	if got := CanEdit(openSettings(), member(models.RoleOwner), otherMsg); got.Allowed {
		t.Error("owner should not edit someone else's message")
	}
	closed := openSettings()
	closed.AllowMessageEditing = false
	if got := CanEdit(closed, member(models.RoleMember), msg); got.Allowed {
		t.Error("editing disabled should deny the sender too")
	}
}

func TestCanDelete(t *testing.T) {
	otherMsg := &models.ChatMessage{SenderId: 2}

	if got := CanDelete(openSettings(), member(models.RoleMember), otherMsg); got.Allowed {
		t.Error("plain member should not delete someone else's message")
	}
	if got := CanDelete(openSettings(), member(models.RoleAdmin), otherMsg); !got.Allowed {
		t.Errorf("admin should delete any message: %s", got.Reason)
	}
	if got := CanDelete(openSettings(), member(models.RoleModerator), otherMsg); got.Allowed {
		t.Error("moderator should not delete someone else's message")
	}
	own := &models.ChatMessage{SenderId: 1}
	if got := CanDelete(openSettings(), member(models.RoleMember), own); !got.Allowed {
		t.Errorf("sender should delete own message: %s", got.Reason)
	}
}

func TestCanPin(t *testing.T) {
	if got := CanPin(member(models.RoleMember)); got.Allowed {
		t.Error("plain member should not pin")
	}
	if got := CanPin(member(models.RoleModerator)); !got.Allowed {
		t.Errorf("moderator should pin: %s", got.Reason)
	}
}

func TestCanAddMember(t *testing.T) {
	settings := openSettings()
	if got := CanAddMember(settings, member(models.RoleMember)); got.Allowed {
		t.Error("plain member should not invite when invites are closed")
	}
	settings.AllowMemberInvites = true
	if got := CanAddMember(settings, member(models.RoleMember)); !got.Allowed {
		t.Errorf("plain member should invite when invites are open: %s", got.Reason)
	}
	settings.AllowMemberInvites = false
	if got := CanAddMember(settings, member(models.RoleModerator)); !got.Allowed {
		t.Errorf("moderator should always invite: %s", got.Reason)
	}
}

func TestCanRemoveMember(t *testing.T) {
	owner := member(models.RoleOwner)
	admin := member(models.RoleAdmin)
	admin.UserId = 2
	plain := member(models.RoleMember)
	plain.UserId = 3
	secondOwner := member(models.RoleOwner)
	secondOwner.UserId = 4

	tests := []struct {
		name       string
		actor      *models.ChatMember
		target     *models.ChatMember
		ownerCount int64
		allowed    bool
	}{
		{"admin removes member", admin, plain, 1, true},
		{"member removes member", plain, admin, 1, false},
		{"admin removes owner", admin, owner, 2, false},
		{"owner removes owner", owner, secondOwner, 2, true},
		{"last owner removal denied", admin, owner, 1, false},
		{"self removal", plain, plain, 1, true},
		{"missing target", admin, nil, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRemoveMember(tt.actor, tt.target, tt.ownerCount); got.Allowed != tt.allowed {
				t.Errorf("CanRemoveMember() = %v (%s), want %v", got.Allowed, got.Reason, tt.allowed)
			}
		})
	}
}

func TestCanChangeRole(t *testing.T) {
	owner := member(models.RoleOwner)
	admin := member(models.RoleAdmin)
	admin.UserId = 2
	plain := member(models.RoleMember)
	plain.UserId = 3

	if got := CanChangeRole(admin, plain, models.RoleModerator); !got.Allowed {
		t.Errorf("admin should promote a member: %s", got.Reason)
	}
	if got := CanChangeRole(admin, plain, models.RoleOwner); got.Allowed {
		t.Error("only an owner may grant ownership")
	}
	if got := CanChangeRole(admin, owner, models.RoleMember); got.Allowed {
		t.Error("only an owner may revoke ownership")
	}
	if got := CanChangeRole(owner, plain, models.RoleOwner); !got.Allowed {
		t.Errorf("owner should grant ownership: %s", got.Reason)
	}
	if got := CanChangeRole(plain, admin, models.RoleMember); got.Allowed {
		t.Error("plain member should not change roles")
	}
}

func TestCanChangeSettings(t *testing.T) {
	if got := CanChangeSettings(member(models.RoleModerator)); got.Allowed {
		t.Error("moderator should not change settings")
	}
	if got := CanChangeSettings(member(models.RoleAdmin)); !got.Allowed {
		t.Errorf("admin should change settings: %s", got.Reason)
	}
}
