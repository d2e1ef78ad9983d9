package ws

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/atrium-collab/atrium/internal/authority"
	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
	"github.com/atrium-collab/atrium/internal/repositories"
	gocache "github.com/patrickmn/go-cache"
)

// Config tunes the hub and its connections.
type Config struct {
	OutboundQueueCap  int
	TypingTTL         time.Duration
	IdleToAway        time.Duration
	HeartbeatInterval time.Duration
	HeartbeatGrace    time.Duration
	MaxMessageLength  int
	CommandTimeout    time.Duration
	QueueIdleTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.OutboundQueueCap <= 0 {
		c.OutboundQueueCap = 256
	}
	if c.TypingTTL <= 0 {
		c.TypingTTL = 5 * time.Second
	}
	if c.IdleToAway <= 0 {
		c.IdleToAway = 5 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HeartbeatGrace < 2*c.HeartbeatInterval {
		c.HeartbeatGrace = 2 * c.HeartbeatInterval
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 4000
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.QueueIdleTimeout <= 0 {
		c.QueueIdleTimeout = time.Minute
	}
	return c
}

// retry policy for transient repository failures inside a queue. The
// queue stays serialized, so retrying in place preserves ordering.
const (
	maxAttempts  = 3
	retryBackoff = 25 * time.Millisecond
)

const settingsCacheTTL = 30 * time.Second

// workQueue serializes command processing for one key (a chat or, for
// presence, a user). Queues spawn on demand and are reaped once idle
// and empty.
type workQueue struct {
	tasks   chan func()
	pending int
}

// Hub is the event router: it validates commands, persists them through
// the repository, derives events and fans them out to the registry's
// subscribers. Per chat, at most one command is in flight at any
// instant; cross-chat presence traffic serializes on the user key.
type Hub struct {
	cfg      Config
	repo     repositories.ChatRepository
	registry *Registry
	presence *PresenceTracker

	mu         sync.Mutex
	chatQueues map[uint]*workQueue
	userQueues map[uint]*workQueue
	pending    int
	closing    bool
	wg         sync.WaitGroup

	seqMu sync.Mutex
	seqs  map[uint]uint64

	chatCache *gocache.Cache // chatID -> *repositories.ChatWithSettings
}

func NewHub(repo repositories.ChatRepository, cfg Config) *Hub {
	h := &Hub{
		cfg:        cfg.withDefaults(),
		repo:       repo,
		registry:   NewRegistry(),
		chatQueues: make(map[uint]*workQueue),
		userQueues: make(map[uint]*workQueue),
		seqs:       make(map[uint]uint64),
		chatCache:  gocache.New(settingsCacheTTL, time.Minute),
	}
	h.presence = NewPresenceTracker(h.cfg.IdleToAway, h.cfg.TypingTTL, h.publishPresence, h.publishTypingStop)
	return h
}

func (h *Hub) Registry() *Registry        { return h.registry }
func (h *Hub) Presence() *PresenceTracker { return h.presence }

// submit enqueues task on the serialized queue for key, spawning the
// worker if needed. The pending counter taken under the lock keeps the
// reaper from dropping a queue that still has a task in flight.
func (h *Hub) submit(queues map[uint]*workQueue, key uint, task func()) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return chaterr.New(chaterr.Transient, "hub is shutting down")
	}
	q := queues[key]
	if q == nil {
		q = &workQueue{tasks: make(chan func(), 128)}
		queues[key] = q
		h.wg.Add(1)
		go h.worker(queues, key, q)
	}
	q.pending++
	h.pending++
	h.mu.Unlock()
	q.tasks <- task
	return nil
}

func (h *Hub) worker(queues map[uint]*workQueue, key uint, q *workQueue) {
	defer h.wg.Done()
	idle := time.NewTimer(h.cfg.QueueIdleTimeout)
	defer idle.Stop()
	for {
		select {
		case task := <-q.tasks:
			task()
			h.mu.Lock()
			q.pending--
			h.pending--
			h.mu.Unlock()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(h.cfg.QueueIdleTimeout)
		case <-idle.C:
			h.mu.Lock()
			if q.pending == 0 {
				delete(queues, key)
				h.mu.Unlock()
				return
			}
			h.mu.Unlock()
			idle.Reset(h.cfg.QueueIdleTimeout)
		}
	}
}

// runChat executes fn on the chat's serialized queue and waits for it.
func (h *Hub) runChat(ctx context.Context, chatID uint, fn func(context.Context) error) error {
	done := make(chan error, 1)
	if err := h.submit(h.chatQueues, chatID, func() { done <- h.withRetry(ctx, fn) }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// The command may still commit; its events land normally.
		return chaterr.Wrap(chaterr.Transient, "command timed out", ctx.Err())
	}
}

// runChatAsync schedules fn on the chat queue without waiting. Used for
// typing and other paths with no caller to report to.
func (h *Hub) runChatAsync(chatID uint, fn func()) {
	_ = h.submit(h.chatQueues, chatID, fn)
}

func (h *Hub) withRetry(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, h.cfg.CommandTimeout)
		err := fn(cctx)
		cancel()
		if err == nil || !chaterr.IsTransient(err) || attempt >= maxAttempts-1 {
			return err
		}
		time.Sleep(retryBackoff << attempt)
	}
}

func (h *Hub) nextSeq(chatID uint) uint64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	h.seqs[chatID]++
	return h.seqs[chatID]
}

// CurrentSeq returns the last sequence number published for a chat.
func (h *Hub) CurrentSeq(chatID uint) uint64 {
	h.seqMu.Lock()
	defer h.seqMu.Unlock()
	return h.seqs[chatID]
}

func (h *Hub) loadChat(ctx context.Context, chatID uint) (*repositories.ChatWithSettings, error) {
	key := fmt.Sprint(chatID)
	if cached, ok := h.chatCache.Get(key); ok {
		return cached.(*repositories.ChatWithSettings), nil
	}
	cw, err := h.repo.LoadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	h.chatCache.Set(key, cw, settingsCacheTTL)
	return cw, nil
}

func (h *Hub) invalidateChat(chatID uint) {
	h.chatCache.Delete(fmt.Sprint(chatID))
}

// deny turns an authority verdict into the error the caller sees and
// leaves the audit line behind.
func (h *Hub) deny(d authority.Decision, userID, chatID uint) error {
	log.Printf("authority: denied %s for user=%d chat=%d: %s", d.Predicate, userID, chatID, d.Reason)
	kind := d.Kind
	if kind == "" {
		kind = chaterr.PermissionDenied
	}
	return chaterr.New(kind, d.Predicate+": "+d.Reason)
}

// publish assigns the next sequence number and delivers the event to
// every subscriber of the chat at most once per connection, plus any
// extra connections (e.g. a freshly added member's). Delivery never
// blocks; the outbound queue absorbs or sheds.
func (h *Hub) publish(chatID uint, evType EventType, data any, skipUser uint, extra []*Connection) {
	ev := Event{Type: evType, ChatId: chatID, Seq: h.nextSeq(chatID), Data: data}
	delivered := make(map[*Connection]struct{})
	for _, sub := range h.registry.SubscribersOf(chatID) {
		if skipUser != 0 && sub.UserId == skipUser {
			continue
		}
		if _, dup := delivered[sub.Conn]; dup {
			continue
		}
		delivered[sub.Conn] = struct{}{}
		sub.Conn.enqueue(ev)
	}
	for _, c := range extra {
		if _, dup := delivered[c]; dup {
			continue
		}
		delivered[c] = struct{}{}
		c.enqueue(ev)
	}
}

// ---- connection lifecycle ----

// ConnectionOpened registers a freshly authenticated connection.
func (h *Hub) ConnectionOpened(c *Connection) {
	h.registry.AddConnection(c.userID, c)
	h.presence.ConnectionOpened(c.userID)
}

// ConnectionClosed detaches the connection everywhere and feeds the
// presence tracker. Commands the connection already submitted still
// commit; their events simply have nowhere to go.
func (h *Hub) ConnectionClosed(c *Connection) {
	for _, chatID := range c.snapshotSubs() {
		h.registry.Detach(chatID, c.userID, c)
	}
	h.registry.RemoveConnection(c.userID, c)
	h.presence.ConnectionClosed(c.userID)
}

// Activity notes inbound traffic for the away timer.
func (h *Hub) Activity(userID uint) { h.presence.Activity(userID) }

// ---- subscriptions ----

// Subscribe attaches the connection to a chat after the read gate. It
// returns the chat's current sequence number so the client knows where
// its history fetch must reach.
func (h *Hub) Subscribe(ctx context.Context, c *Connection, chatID uint) (uint64, error) {
	var seq uint64
	err := h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		member, err := h.repo.LoadMembership(ctx, chatID, c.userID)
		if err != nil {
			return err
		}
		if d := authority.CanRead(&cw.Chat, member); !d.Allowed {
			return h.deny(d, c.userID, chatID)
		}
		c.addSub(chatID)
		h.registry.Attach(chatID, c.userID, c)
		// A close that already ran its detach pass never saw this
		// subscription; undo it here. A close that lands after this
		// check finds the chat in its snapshot.
		if c.closed() {
			h.registry.Detach(chatID, c.userID, c)
			c.removeSub(chatID)
			return chaterr.New(chaterr.Transient, "connection is closed")
		}
		seq = h.CurrentSeq(chatID)
		return nil
	})
	return seq, err
}

func (h *Hub) Unsubscribe(c *Connection, chatID uint) {
	h.registry.Detach(chatID, c.userID, c)
	c.removeSub(chatID)
}

// ---- messages ----

type PostInput struct {
	Kind           models.MessageKind
	Content        string
	Metadata       string
	ReplyToId      *uint
	ForwardFromId  *uint
	IdempotencyKey string
}

func (h *Hub) PostMessage(ctx context.Context, userID, chatID uint, in PostInput) (*models.ChatMessage, error) {
	var msg *models.ChatMessage
	err := h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		if cw.Chat.IsArchived {
			return chaterr.New(chaterr.Conflict, "chat is archived")
		}
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		var lastOwn *time.Time
		if member != nil && cw.Settings.SlowModeInterval > 0 && !member.Role.Privileged() {
			if lastOwn, err = h.repo.LastPostAt(ctx, chatID, userID); err != nil {
				return err
			}
		}
		if d := authority.CanPost(&cw.Settings, member, lastOwn, time.Now()); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		maxLen := cw.Settings.MaxMessageLength
		if maxLen == 0 {
			maxLen = h.cfg.MaxMessageLength
		}
		created := false
		msg, created, err = h.repo.AppendMessage(ctx, repositories.AppendMessageParams{
			ChatId:         chatID,
			SenderId:       userID,
			Kind:           in.Kind,
			Content:        in.Content,
			Metadata:       in.Metadata,
			ReplyToId:      in.ReplyToId,
			ForwardFromId:  in.ForwardFromId,
			IdempotencyKey: in.IdempotencyKey,
			MaxLength:      maxLen,
		})
		if err != nil {
			return err
		}
		if created {
			h.invalidateChat(chatID)
			h.publish(chatID, EventMessage, MessagePayload{Message: msg}, 0, nil)
		}
		return nil
	})
	return msg, err
}

func (h *Hub) EditMessage(ctx context.Context, userID, chatID, messageID uint, content string) (*models.ChatMessage, error) {
	var msg *models.ChatMessage
	err := h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		existing, err := h.repo.LoadMessage(ctx, chatID, messageID)
		if err != nil {
			return err
		}
		if d := authority.CanEdit(&cw.Settings, member, existing); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		if msg, err = h.repo.EditMessage(ctx, chatID, messageID, content); err != nil {
			return err
		}
		h.publish(chatID, EventMessageEdited, MessagePayload{Message: msg}, 0, nil)
		return nil
	})
	return msg, err
}

func (h *Hub) DeleteMessage(ctx context.Context, userID, chatID, messageID uint) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		existing, err := h.repo.LoadMessage(ctx, chatID, messageID)
		if err != nil {
			return err
		}
		if d := authority.CanDelete(&cw.Settings, member, existing); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		if existing.IsDeleted {
			return nil
		}
		if _, err = h.repo.SoftDeleteMessage(ctx, chatID, messageID); err != nil {
			return err
		}
		h.invalidateChat(chatID)
		h.publish(chatID, EventMessageDeleted, MessageDeletedPayload{MessageId: messageID}, 0, nil)
		return nil
	})
}

// ---- reactions, reads, pins ----

func (h *Hub) AddReaction(ctx context.Context, userID, chatID, messageID uint, emoji string) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if d := authority.CanReact(&cw.Settings, member); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		_, created, err := h.repo.AddReaction(ctx, chatID, messageID, userID, emoji)
		if err != nil {
			return err
		}
		if created {
			h.publish(chatID, EventReaction, ReactionPayload{MessageId: messageID, UserId: userID, Emoji: emoji, Added: true}, 0, nil)
		}
		return nil
	})
}

func (h *Hub) RemoveReaction(ctx context.Context, userID, chatID, messageID uint, emoji string) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if d := authority.CanReact(&cw.Settings, member); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		removed, err := h.repo.RemoveReaction(ctx, chatID, messageID, userID, emoji)
		if err != nil {
			return err
		}
		if removed {
			h.publish(chatID, EventReaction, ReactionPayload{MessageId: messageID, UserId: userID, Emoji: emoji, Added: false}, 0, nil)
		}
		return nil
	})
}

func (h *Hub) MarkRead(ctx context.Context, userID, chatID, messageID uint) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if member == nil {
			return chaterr.New(chaterr.PermissionDenied, "read: not a member of the chat")
		}
		if d := authority.CanRead(&cw.Chat, member); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		read, created, err := h.repo.MarkRead(ctx, chatID, messageID, userID)
		if err != nil {
			return err
		}
		if created {
			h.publish(chatID, EventReadReceipt, ReadReceiptPayload{MessageId: messageID, UserId: userID, ReadAt: read.ReadAt}, 0, nil)
		}
		return nil
	})
}

func (h *Hub) Pin(ctx context.Context, userID, chatID, messageID uint) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if d := authority.CanPin(member); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		_, created, err := h.repo.Pin(ctx, chatID, messageID, userID)
		if err != nil {
			return err
		}
		if created {
			h.publish(chatID, EventPinned, PinPayload{MessageId: messageID, PinnedBy: userID}, 0, nil)
		}
		return nil
	})
}

func (h *Hub) Unpin(ctx context.Context, userID, chatID, messageID uint) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if d := authority.CanPin(member); !d.Allowed {
			return h.deny(d, userID, chatID)
		}
		removed, err := h.repo.Unpin(ctx, chatID, messageID)
		if err != nil {
			return err
		}
		if removed {
			h.publish(chatID, EventUnpinned, PinPayload{MessageId: messageID}, 0, nil)
		}
		return nil
	})
}

// ---- membership and settings ----

func (h *Hub) AddMember(ctx context.Context, principalID, chatID, newUserID uint, role models.MemberRole) (*models.ChatMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	var added *models.ChatMember
	err := h.runChat(ctx, chatID, func(ctx context.Context) error {
		cw, err := h.loadChat(ctx, chatID)
		if err != nil {
			return err
		}
		principal, err := h.repo.LoadMembership(ctx, chatID, principalID)
		if err != nil {
			return err
		}
		if d := authority.CanAddMember(&cw.Settings, principal); !d.Allowed {
			return h.deny(d, principalID, chatID)
		}
		if added, err = h.repo.AddMember(ctx, chatID, newUserID, role); err != nil {
			return err
		}
		h.invalidateChat(chatID)
		// The new member's open connections see the join even before
		// they subscribe.
		h.publish(chatID, EventMemberJoined, MemberPayload{Member: added}, 0, h.registry.ConnectionsOf(newUserID))
		return nil
	})
	return added, err
}

func (h *Hub) RemoveMember(ctx context.Context, principalID, chatID, targetUserID uint) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		principal, err := h.repo.LoadMembership(ctx, chatID, principalID)
		if err != nil {
			return err
		}
		target, err := h.repo.LoadMembership(ctx, chatID, targetUserID)
		if err != nil {
			return err
		}
		owners, err := h.repo.OwnerCount(ctx, chatID)
		if err != nil {
			return err
		}
		if d := authority.CanRemoveMember(principal, target, owners); !d.Allowed {
			return h.deny(d, principalID, chatID)
		}
		removed, err := h.repo.RemoveMember(ctx, chatID, targetUserID)
		if err != nil {
			return err
		}
		h.invalidateChat(chatID)
		h.kickSubscribers(chatID, targetUserID, principalID)
		h.publish(chatID, EventMemberLeft, MemberPayload{Member: removed}, 0, nil)
		return nil
	})
}

// LeaveChat is self-removal. The last owner may leave; the chat is
// archived rather than stranded.
func (h *Hub) LeaveChat(ctx context.Context, userID, chatID uint) error {
	return h.runChat(ctx, chatID, func(ctx context.Context) error {
		member, err := h.repo.LoadMembership(ctx, chatID, userID)
		if err != nil {
			return err
		}
		if member == nil || !member.IsActive {
			return chaterr.New(chaterr.NotFound, "not an active member")
		}
		removed, err := h.repo.RemoveMember(ctx, chatID, userID)
		if err != nil {
			return err
		}
		h.invalidateChat(chatID)
		for _, sub := range h.registry.SubscribersOf(chatID) {
			if sub.UserId == userID {
				h.registry.Detach(chatID, userID, sub.Conn)
				sub.Conn.removeSub(chatID)
			}
		}
		h.publish(chatID, EventMemberLeft, MemberPayload{Member: removed}, 0, nil)
		return nil
	})
}

// kickSubscribers delivers the private kicked event to the removed
// user's subscribed connections, then detaches them on their behalf.
func (h *Hub) kickSubscribers(chatID, targetUserID, removedBy uint) {
	kicked := Event{Type: EventKicked, ChatId: chatID, Seq: h.nextSeq(chatID), Data: KickedPayload{RemovedBy: removedBy}}
	for _, sub := range h.registry.SubscribersOf(chatID) {
		if sub.UserId != targetUserID {
			continue
		}
		sub.Conn.enqueue(kicked)
		h.registry.Detach(chatID, targetUserID, sub.Conn)
		sub.Conn.removeSub(chatID)
	}
}

// ChangeRole updates a member's role. Granting owner demotes the
// grantor to admin so the chat keeps exactly one owner.
func (h *Hub) ChangeRole(ctx context.Context, principalID, chatID, targetUserID uint, role models.MemberRole) (*models.ChatMember, error) {
	var changed *models.ChatMember
	err := h.runChat(ctx, chatID, func(ctx context.Context) error {
		principal, err := h.repo.LoadMembership(ctx, chatID, principalID)
		if err != nil {
			return err
		}
		target, err := h.repo.LoadMembership(ctx, chatID, targetUserID)
		if err != nil {
			return err
		}
		if d := authority.CanChangeRole(principal, target, role); !d.Allowed {
			return h.deny(d, principalID, chatID)
		}
		if changed, err = h.repo.ChangeRole(ctx, chatID, targetUserID, role); err != nil {
			return err
		}
		if role == models.RoleOwner && principalID != targetUserID {
			if _, err = h.repo.ChangeRole(ctx, chatID, principalID, models.RoleAdmin); err != nil {
				return err
			}
		}
		return nil
	})
	return changed, err
}

func (h *Hub) UpdateSettings(ctx context.Context, principalID, chatID uint, patch repositories.SettingsPatch) (*models.ChatSettings, error) {
	var settings *models.ChatSettings
	err := h.runChat(ctx, chatID, func(ctx context.Context) error {
		member, err := h.repo.LoadMembership(ctx, chatID, principalID)
		if err != nil {
			return err
		}
		if d := authority.CanChangeSettings(member); !d.Allowed {
			return h.deny(d, principalID, chatID)
		}
		if settings, err = h.repo.UpdateSettings(ctx, chatID, patch); err != nil {
			return err
		}
		h.invalidateChat(chatID)
		h.publish(chatID, EventSettingsChanged, SettingsPayload{Settings: settings}, 0, nil)
		return nil
	})
	return settings, err
}

// ---- typing and presence ----

// TypingStart is advisory: errors are swallowed and nothing persists.
// Only connections already subscribed to the chat may signal typing.
func (h *Hub) TypingStart(c *Connection, chatID uint) {
	if !c.subscribed(chatID) {
		return
	}
	if h.presence.TypingStart(chatID, c.userID) {
		userID := c.userID
		h.runChatAsync(chatID, func() {
			h.publish(chatID, EventTyping, TypingPayload{UserId: userID, Typing: true}, userID, nil)
		})
	}
}

func (h *Hub) TypingStop(c *Connection, chatID uint) {
	if h.presence.TypingStop(chatID, c.userID) {
		userID := c.userID
		h.runChatAsync(chatID, func() {
			h.publish(chatID, EventTyping, TypingPayload{UserId: userID, Typing: false}, userID, nil)
		})
	}
}

// publishTypingStop is the typing-TTL expiry path.
func (h *Hub) publishTypingStop(chatID, userID uint) {
	h.runChatAsync(chatID, func() {
		h.publish(chatID, EventTyping, TypingPayload{UserId: userID, Typing: false}, userID, nil)
	})
}

// publishPresence fans a presence flip out to everyone sharing a chat
// with the user, serialized on the user key. The audience comes from
// persisted membership so the offline flip still reaches everyone after
// the registry forgot the user.
func (h *Hub) publishPresence(userID uint, state PresenceState) {
	_ = h.submit(h.userQueues, userID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CommandTimeout)
		defer cancel()
		summaries, err := h.repo.ListUserChats(ctx, userID)
		if err != nil {
			log.Printf("presence: listing chats for user %d: %v", userID, err)
			return
		}
		ev := Event{Type: EventPresence, Data: PresencePayload{UserId: userID, State: string(state)}}
		seen := make(map[*Connection]struct{})
		for _, summary := range summaries {
			for _, sub := range h.registry.SubscribersOf(summary.Chat.Id) {
				if sub.UserId == userID {
					continue
				}
				if _, dup := seen[sub.Conn]; dup {
					continue
				}
				seen[sub.Conn] = struct{}{}
				sub.Conn.enqueue(ev)
			}
		}
	})
}

// ---- shutdown ----

// Shutdown drains the per-chat queues for the grace period, then closes
// every connection. Unflushed outbound events are discarded; clients
// recover on reconnect.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		for {
			h.mu.Lock()
			n := h.pending
			h.mu.Unlock()
			if n == 0 {
				close(drained)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}

	for _, conns := range h.allConnections() {
		for _, c := range conns {
			c.Close()
		}
	}
	return nil
}

func (h *Hub) allConnections() map[uint][]*Connection {
	h.registry.mu.RLock()
	defer h.registry.mu.RUnlock()
	out := make(map[uint][]*Connection, len(h.registry.userConns))
	for userID, set := range h.registry.userConns {
		for c := range set {
			out[userID] = append(out[userID], c)
		}
	}
	return out
}
