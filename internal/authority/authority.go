// Package authority holds the pure decision functions gating every chat
// mutation and every event delivery. The functions are total and have no
// side effects; the hub records the failing predicate on denial.
package authority

import (
	"time"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
)

// Decision is an allow/deny verdict plus which predicate produced it.
// Kind is the error class a denial maps to.
type Decision struct {
	Allowed   bool
	Predicate string
	Reason    string
	Kind      chaterr.Kind
}

func allow(predicate string) Decision {
	return Decision{Allowed: true, Predicate: predicate}
}

func deny(predicate, reason string) Decision {
	return Decision{Allowed: false, Predicate: predicate, Reason: reason, Kind: chaterr.PermissionDenied}
}

// denyConflict marks denials caused by chat state rather than missing
// privilege: retrying later (or after a state change) can succeed.
func denyConflict(predicate, reason string) Decision {
	return Decision{Allowed: false, Predicate: predicate, Reason: reason, Kind: chaterr.Conflict}
}

// activeMember reports whether m is an active, non-banned membership row.
func activeMember(m *models.ChatMember) bool {
	return m != nil && m.IsActive && !m.IsBanned
}

// CanRead decides whether a principal may read a chat and receive its
// events. Public channels are readable by any authenticated user.
func CanRead(chat *models.Chat, m *models.ChatMember) Decision {
	const p = "read"
	if chat.Kind == models.ChatKindChannel && !chat.IsPrivate {
		return allow(p)
	}
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	return allow(p)
}

// CanPost decides whether a principal may post, including the slow-mode
// gate. lastOwnPost is the sender's newest sent_at, nil if none.
func CanPost(settings *models.ChatSettings, m *models.ChatMember, lastOwnPost *time.Time, now time.Time) Decision {
	const p = "post"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if m.IsMuted {
		return deny(p, "member is muted")
	}
	if settings.SlowModeInterval > 0 && !m.Role.Privileged() && lastOwnPost != nil {
		wait := time.Duration(settings.SlowModeInterval) * time.Second
		if now.Sub(*lastOwnPost) < wait {
			return denyConflict(p, "slow mode: posting too fast")
		}
	}
	return allow(p)
}

// CanEdit: only the sender may edit, and only while editing is enabled.
// There is no hard time window.
func CanEdit(settings *models.ChatSettings, m *models.ChatMember, msg *models.ChatMessage) Decision {
	const p = "edit"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if !settings.AllowMessageEditing {
		return deny(p, "message editing is disabled")
	}
	if msg.SenderId != m.UserId {
		return deny(p, "only the sender may edit a message")
	}
	return allow(p)
}

// CanDelete: the sender, or an owner/admin, while deletion is enabled.
func CanDelete(settings *models.ChatSettings, m *models.ChatMember, msg *models.ChatMessage) Decision {
	const p = "delete"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if !settings.AllowMessageDeletion {
		return deny(p, "message deletion is disabled")
	}
	if msg.SenderId == m.UserId {
		return allow(p)
	}
	if m.Role == models.RoleOwner || m.Role == models.RoleAdmin {
		return allow(p)
	}
	return deny(p, "only the sender or an admin may delete a message")
}

func CanReact(settings *models.ChatSettings, m *models.ChatMember) Decision {
	const p = "react"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if !settings.AllowReactions {
		return deny(p, "reactions are disabled")
	}
	return allow(p)
}

func CanPin(m *models.ChatMember) Decision {
	const p = "pin"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if !m.Role.Privileged() {
		return deny(p, "requires moderator or above")
	}
	return allow(p)
}

// CanAddMember: owner, admin or moderator may invite; when
// allow_member_invites is set, any active member may.
func CanAddMember(settings *models.ChatSettings, m *models.ChatMember) Decision {
	const p = "add-member"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if !m.Role.Privileged() && !settings.AllowMemberInvites {
		return deny(p, "requires moderator or above")
	}
	return allow(p)
}

// CanRemoveMember: owner/admin/moderator may remove; owners are immune
// to removal by non-owners; the last owner cannot be removed at all.
// ownerCount is the number of active owners at decision time.
func CanRemoveMember(m *models.ChatMember, target *models.ChatMember, ownerCount int64) Decision {
	const p = "remove-member"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if target == nil || !target.IsActive {
		return deny(p, "target is not an active member")
	}
	self := m.UserId == target.UserId
	if !self && !m.Role.Privileged() {
		return deny(p, "requires moderator or above")
	}
	if target.Role == models.RoleOwner {
		if ownerCount <= 1 {
			return denyConflict(p, "the last owner must transfer ownership first")
		}
		if !self && m.Role != models.RoleOwner {
			return deny(p, "only an owner may remove an owner")
		}
	}
	return allow(p)
}

func CanChangeSettings(m *models.ChatMember) Decision {
	const p = "change-settings"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if m.Role != models.RoleOwner && m.Role != models.RoleAdmin {
		return deny(p, "requires admin or owner")
	}
	return allow(p)
}

// CanChangeRole: owner/admin may change roles; only an owner may grant
// or revoke the owner role.
func CanChangeRole(m *models.ChatMember, target *models.ChatMember, newRole models.MemberRole) Decision {
	const p = "change-role"
	if !activeMember(m) {
		return deny(p, "not an active member")
	}
	if m.Role != models.RoleOwner && m.Role != models.RoleAdmin {
		return deny(p, "requires admin or owner")
	}
	if target == nil || !target.IsActive {
		return deny(p, "target is not an active member")
	}
	if (newRole == models.RoleOwner || target.Role == models.RoleOwner) && m.Role != models.RoleOwner {
		return deny(p, "only an owner may grant or revoke ownership")
	}
	return allow(p)
}
