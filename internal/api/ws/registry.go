package ws

import (
	"sync"
)

// Subscriber is one (user, connection) pair attached to a chat.
type Subscriber struct {
	UserId uint
	Conn   *Connection
}

// Registry indexes live connections by chat and by user. Reads on the
// fan-out path take a snapshot under a read lock; mutations hold a
// short write lock. The hub owns the registry; nothing else mutates it.
type Registry struct {
	mu        sync.RWMutex
	chats     map[uint]map[*Connection]uint     // chat -> conn -> user
	userChats map[uint]map[uint]int             // user -> chat -> attach refcount
	userConns map[uint]map[*Connection]struct{} // user -> open connections
}

func NewRegistry() *Registry {
	return &Registry{
		chats:     make(map[uint]map[*Connection]uint),
		userChats: make(map[uint]map[uint]int),
		userConns: make(map[uint]map[*Connection]struct{}),
	}
}

// AddConnection records an open connection for a user and returns how
// many the user now has.
func (r *Registry) AddConnection(userID uint, c *Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.userConns[userID]
	if set == nil {
		set = make(map[*Connection]struct{})
		r.userConns[userID] = set
	}
	set[c] = struct{}{}
	return len(set)
}

// RemoveConnection drops an open connection and returns how many remain.
func (r *Registry) RemoveConnection(userID uint, c *Connection) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.userConns[userID]
	if set == nil {
		return 0
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.userConns, userID)
		return 0
	}
	return len(set)
}

// Attach subscribes a connection to a chat. The caller has already
// passed the read authority gate.
func (r *Registry) Attach(chatID, userID uint, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.chats[chatID]
	if conns == nil {
		conns = make(map[*Connection]uint)
		r.chats[chatID] = conns
	}
	if _, ok := conns[c]; ok {
		return
	}
	conns[c] = userID

	chats := r.userChats[userID]
	if chats == nil {
		chats = make(map[uint]int)
		r.userChats[userID] = chats
	}
	chats[chatID]++
}

// Detach removes one connection's subscription to a chat.
func (r *Registry) Detach(chatID, userID uint, c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.chats[chatID]
	if conns == nil {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.chats, chatID)
	}

	chats := r.userChats[userID]
	if chats != nil {
		chats[chatID]--
		if chats[chatID] <= 0 {
			delete(chats, chatID)
		}
		if len(chats) == 0 {
			delete(r.userChats, userID)
		}
	}
}

// SubscribersOf returns a snapshot of the chat's subscribers, safe to
// iterate without holding any lock.
func (r *Registry) SubscribersOf(chatID uint) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := r.chats[chatID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]Subscriber, 0, len(conns))
	for c, userID := range conns {
		out = append(out, Subscriber{UserId: userID, Conn: c})
	}
	return out
}

// ConnectionsOf returns a snapshot of every open connection for a user,
// subscribed or not.
func (r *Registry) ConnectionsOf(userID uint) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.userConns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// ChatsOf returns the chats the user is subscribed to on any connection.
func (r *Registry) ChatsOf(userID uint) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chats := r.userChats[userID]
	if len(chats) == 0 {
		return nil
	}
	out := make([]uint, 0, len(chats))
	for chatID := range chats {
		out = append(out, chatID)
	}
	return out
}

// HasAnySubscriber reports whether the user has at least one live
// subscription.
func (r *Registry) HasAnySubscriber(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.userChats[userID]) > 0
}
