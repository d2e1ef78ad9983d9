package ws

import (
	"sync"
	"time"
)

type PresenceState string

const (
	PresenceOnline  PresenceState = "online"
	PresenceAway    PresenceState = "away"
	PresenceOffline PresenceState = "offline"
)

// PresenceTracker derives per-user presence from connection lifecycle
// and inbound traffic, and owns the typing-indicator timers. It reports
// state changes through callbacks; the hub serializes those on the user
// key and fans them out. Failures on this path are swallowed: presence
// and typing have no user-visible error surface.
type PresenceTracker struct {
	mu         sync.Mutex
	users      map[uint]*presenceEntry
	typing     map[typingKey]*time.Timer
	idleToAway time.Duration
	typingTTL  time.Duration

	onPresence   func(userID uint, state PresenceState)
	onTypingStop func(chatID, userID uint)
}

type presenceEntry struct {
	conns     int
	state     PresenceState
	awayTimer *time.Timer
}

type typingKey struct {
	chatID uint
	userID uint
}

func NewPresenceTracker(idleToAway, typingTTL time.Duration,
	onPresence func(uint, PresenceState), onTypingStop func(chatID, userID uint)) *PresenceTracker {
	return &PresenceTracker{
		users:        make(map[uint]*presenceEntry),
		typing:       make(map[typingKey]*time.Timer),
		idleToAway:   idleToAway,
		typingTTL:    typingTTL,
		onPresence:   onPresence,
		onTypingStop: onTypingStop,
	}
}

// ConnectionOpened registers one more live connection for the user.
// The first connection flips the user online.
func (t *PresenceTracker) ConnectionOpened(userID uint) {
	t.mu.Lock()
	entry := t.users[userID]
	if entry == nil {
		entry = &presenceEntry{state: PresenceOffline}
		t.users[userID] = entry
	}
	entry.conns++
	first := entry.conns == 1
	if first {
		entry.state = PresenceOnline
		t.resetAwayTimerLocked(userID, entry)
	}
	t.mu.Unlock()
	if first {
		t.onPresence(userID, PresenceOnline)
	}
}

// ConnectionClosed unregisters a connection. The last connection flips
// the user offline and clears any typing indicators they held.
func (t *PresenceTracker) ConnectionClosed(userID uint) {
	t.mu.Lock()
	entry := t.users[userID]
	if entry == nil {
		t.mu.Unlock()
		return
	}
	entry.conns--
	last := entry.conns <= 0
	var stopped []typingKey
	if last {
		if entry.awayTimer != nil {
			entry.awayTimer.Stop()
		}
		delete(t.users, userID)
		for key, timer := range t.typing {
			if key.userID == userID {
				timer.Stop()
				delete(t.typing, key)
				stopped = append(stopped, key)
			}
		}
	}
	t.mu.Unlock()
	if last {
		for _, key := range stopped {
			t.onTypingStop(key.chatID, key.userID)
		}
		t.onPresence(userID, PresenceOffline)
	}
}

// Activity notes an inbound frame from the user: the away timer restarts
// and an away user pops back online.
func (t *PresenceTracker) Activity(userID uint) {
	t.mu.Lock()
	entry := t.users[userID]
	if entry == nil {
		t.mu.Unlock()
		return
	}
	wasAway := entry.state == PresenceAway
	entry.state = PresenceOnline
	t.resetAwayTimerLocked(userID, entry)
	t.mu.Unlock()
	if wasAway {
		t.onPresence(userID, PresenceOnline)
	}
}

func (t *PresenceTracker) resetAwayTimerLocked(userID uint, entry *presenceEntry) {
	if entry.awayTimer != nil {
		entry.awayTimer.Stop()
	}
	entry.awayTimer = time.AfterFunc(t.idleToAway, func() {
		t.mu.Lock()
		e := t.users[userID]
		idle := e != nil && e.state == PresenceOnline
		if idle {
			e.state = PresenceAway
		}
		t.mu.Unlock()
		if idle {
			t.onPresence(userID, PresenceAway)
		}
	})
}

// State reports the user's current presence.
func (t *PresenceTracker) State(userID uint) PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry := t.users[userID]; entry != nil {
		return entry.state
	}
	return PresenceOffline
}

// TypingStart arms (or refreshes) the typing timer for (chat, user) and
// reports whether the indicator just turned on.
func (t *PresenceTracker) TypingStart(chatID, userID uint) bool {
	key := typingKey{chatID: chatID, userID: userID}
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.typing[key]; ok {
		timer.Reset(t.typingTTL)
		return false
	}
	t.typing[key] = time.AfterFunc(t.typingTTL, func() {
		t.mu.Lock()
		_, live := t.typing[key]
		if live {
			delete(t.typing, key)
		}
		t.mu.Unlock()
		if live {
			t.onTypingStop(chatID, userID)
		}
	})
	return true
}

// TypingStop disarms the indicator and reports whether it was on.
func (t *PresenceTracker) TypingStop(chatID, userID uint) bool {
	key := typingKey{chatID: chatID, userID: userID}
	t.mu.Lock()
	timer, ok := t.typing[key]
	if ok {
		timer.Stop()
		delete(t.typing, key)
	}
	t.mu.Unlock()
	return ok
}
