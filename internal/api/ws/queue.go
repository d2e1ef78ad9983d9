package ws

import (
	"sync"
)

// outQueue is a connection's bounded outbound buffer. Pushing never
// blocks: when the queue is full, the oldest advisory event (typing,
// presence) is shed first; if nothing can be shed the queue is marked
// stalled, the event is dropped and a resync-required frame is emitted
// for the affected chat once the writer has drained the backlog.
type outQueue struct {
	mu      sync.Mutex
	items   []Event
	cap     int
	stalled bool
	resync  map[uint]struct{}
	notify  chan struct{}
	closed  bool
}

func newOutQueue(capacity int) *outQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &outQueue{
		cap:    capacity,
		resync: make(map[uint]struct{}),
		notify: make(chan struct{}, 1),
	}
}

// push enqueues ev under the backpressure policy. It reports whether the
// event was accepted.
func (q *outQueue) push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if len(q.items) < q.cap {
		q.items = append(q.items, ev)
		q.signal()
		return true
	}
	// Full: shed the oldest advisory event to make room.
	for i, queued := range q.items {
		if queued.shedable() {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.items = append(q.items, ev)
			q.signal()
			return true
		}
	}
	if ev.shedable() {
		// Advisory events vanish silently; no state is lost.
		return false
	}
	q.stalled = true
	if ev.ChatId != 0 {
		q.resync[ev.ChatId] = struct{}{}
	}
	return false
}

// pop removes the next event. Once a stalled queue drains, the pending
// resync-required frames are surfaced before pop reports empty.
func (q *outQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 && q.stalled {
		for chatID := range q.resync {
			q.items = append(q.items, Event{Type: EventResyncRequired, ChatId: chatID})
			delete(q.resync, chatID)
		}
		q.stalled = false
	}
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	if len(q.items) > 0 || q.stalled {
		q.signal()
	}
	return ev, true
}

func (q *outQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *outQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.signal()
}

func (q *outQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
