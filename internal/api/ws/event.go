package ws

import (
	"time"

	"github.com/atrium-collab/atrium/internal/models"
)

// EventType tags a server-to-client frame.
type EventType string

const (
	EventMessage         EventType = "message"
	EventMessageEdited   EventType = "message-edited"
	EventMessageDeleted  EventType = "message-deleted"
	EventReaction        EventType = "reaction"
	EventReadReceipt     EventType = "read-receipt"
	EventPinned          EventType = "pinned"
	EventUnpinned        EventType = "unpinned"
	EventMemberJoined    EventType = "member-joined"
	EventMemberLeft      EventType = "member-left"
	EventKicked          EventType = "kicked"
	EventSettingsChanged EventType = "settings-changed"
	EventTyping          EventType = "typing"
	EventPresence        EventType = "presence"
	EventResyncRequired  EventType = "resync-required"
	EventPong            EventType = "pong"
	EventAck             EventType = "ack"
	EventNack            EventType = "nack"
)

// Event is one outbound frame. Seq is the per-chat sequence number for
// chat-scoped events; control frames (ack, nack, pong, presence) leave
// it zero.
type Event struct {
	Type   EventType `json:"type"`
	ChatId uint      `json:"chat_id,omitempty"`
	Seq    uint64    `json:"seq,omitempty"`
	Data   any       `json:"data,omitempty"`
}

// shedable events are advisory and are dropped first under backpressure.
func (e Event) shedable() bool {
	return e.Type == EventTyping || e.Type == EventPresence
}

type MessagePayload struct {
	Message *models.ChatMessage `json:"message"`
}

type MessageDeletedPayload struct {
	MessageId uint `json:"message_id"`
}

type ReactionPayload struct {
	MessageId uint   `json:"message_id"`
	UserId    uint   `json:"user_id"`
	Emoji     string `json:"emoji"`
	Added     bool   `json:"added"`
}

type ReadReceiptPayload struct {
	MessageId uint      `json:"message_id"`
	UserId    uint      `json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}

type PinPayload struct {
	MessageId uint `json:"message_id"`
	PinnedBy  uint `json:"pinned_by,omitempty"`
}

type MemberPayload struct {
	Member *models.ChatMember `json:"member"`
}

type KickedPayload struct {
	RemovedBy uint `json:"removed_by"`
}

type SettingsPayload struct {
	Settings *models.ChatSettings `json:"settings"`
}

type TypingPayload struct {
	UserId uint `json:"user_id"`
	Typing bool `json:"typing"`
}

type PresencePayload struct {
	UserId uint   `json:"user_id"`
	State  string `json:"state"`
}

// AckPayload answers a client command frame. On nack, Kind and Reason
// describe the failure; on ack, Result carries the command's output.
type AckPayload struct {
	RequestId string `json:"request_id"`
	Kind      string `json:"kind,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Result    any    `json:"result,omitempty"`
}
