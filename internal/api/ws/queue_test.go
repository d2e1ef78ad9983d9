package ws

import (
	"testing"
)

func drain(q *outQueue) []Event {
	var out []Event
	for {
		ev, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestQueuePreservesOrder(t *testing.T) {
	q := newOutQueue(8)
	for seq := uint64(1); seq <= 5; seq++ {
		q.push(Event{Type: EventMessage, ChatId: 1, Seq: seq})
	}
	got := drain(q)
	if len(got) != 5 {
		t.Fatalf("got %d events, want 5", len(got))
	}
	for i, ev := range got {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d has seq %d", i, ev.Seq)
		}
	}
}

func TestQueueShedsAdvisoryFirst(t *testing.T) {
	q := newOutQueue(3)
	q.push(Event{Type: EventMessage, ChatId: 1, Seq: 1})
	q.push(Event{Type: EventTyping, ChatId: 1})
	q.push(Event{Type: EventMessage, ChatId: 1, Seq: 2})
	// Full. The typing event should make room for the message.
	if !q.push(Event{Type: EventMessage, ChatId: 1, Seq: 3}) {
		t.Fatal("push should succeed by shedding the typing event")
	}
	got := drain(q)
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for _, ev := range got {
		if ev.Type == EventTyping {
			t.Error("typing event should have been shed")
		}
	}
	if got[0].Seq != 1 || got[1].Seq != 2 || got[2].Seq != 3 {
		t.Errorf("message order broken: %+v", got)
	}
}

func TestQueueDropsIncomingAdvisoryWhenFull(t *testing.T) {
	q := newOutQueue(2)
	q.push(Event{Type: EventMessage, ChatId: 1, Seq: 1})
	q.push(Event{Type: EventMessage, ChatId: 1, Seq: 2})
	if q.push(Event{Type: EventPresence}) {
		t.Error("incoming advisory event should be dropped silently")
	}
	if q.len() != 2 {
		t.Errorf("queue length changed: %d", q.len())
	}
	// No resync: nothing durable was lost.
	got := drain(q)
	for _, ev := range got {
		if ev.Type == EventResyncRequired {
			t.Error("advisory drop must not trigger resync")
		}
	}
}

func TestQueueStallEmitsResyncAfterDrain(t *testing.T) {
	q := newOutQueue(2)
	q.push(Event{Type: EventMessage, ChatId: 7, Seq: 1})
	q.push(Event{Type: EventMessage, ChatId: 7, Seq: 2})
	// Nothing shedable; this durable event is lost and chat 7 stalls.
	if q.push(Event{Type: EventMessage, ChatId: 7, Seq: 3}) {
		t.Fatal("push should fail on a full queue of durable events")
	}
	q.push(Event{Type: EventMessage, ChatId: 9, Seq: 1}) // also dropped, chat 9

	got := drain(q)
	if len(got) != 4 {
		t.Fatalf("got %d events, want 2 messages + 2 resyncs", len(got))
	}
	resyncs := map[uint]bool{}
	for _, ev := range got[2:] {
		if ev.Type != EventResyncRequired {
			t.Fatalf("expected resync-required after drain, got %s", ev.Type)
		}
		resyncs[ev.ChatId] = true
	}
	if !resyncs[7] || !resyncs[9] {
		t.Errorf("resync chats = %v, want chats 7 and 9", resyncs)
	}
}

func TestQueueResyncOnlyOncePerChat(t *testing.T) {
	q := newOutQueue(1)
	q.push(Event{Type: EventMessage, ChatId: 7, Seq: 1})
	q.push(Event{Type: EventMessage, ChatId: 7, Seq: 2})
	q.push(Event{Type: EventMessage, ChatId: 7, Seq: 3})
	got := drain(q)
	count := 0
	for _, ev := range got {
		if ev.Type == EventResyncRequired {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d resync events for one chat, want 1", count)
	}
}

func TestQueueClosedRejects(t *testing.T) {
	q := newOutQueue(4)
	q.close()
	if q.push(Event{Type: EventMessage, ChatId: 1, Seq: 1}) {
		t.Error("closed queue accepted an event")
	}
	if _, ok := q.pop(); ok {
		t.Error("closed queue returned an event")
	}
}
