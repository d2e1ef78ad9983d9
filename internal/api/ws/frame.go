package ws

import (
	"encoding/json"
)

// CommandFrame is one inbound client frame: a tagged type, a
// client-chosen request id echoed on the ack/nack, and a per-type
// payload.
type CommandFrame struct {
	Type      string          `json:"type"`
	RequestId string          `json:"request_id"`
	ChatId    uint            `json:"chat_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Inbound frame types.
const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePost        = "post"
	frameEdit        = "edit"
	frameDelete      = "delete"
	frameReactAdd    = "react-add"
	frameReactRemove = "react-remove"
	frameRead        = "read"
	framePin         = "pin"
	frameUnpin       = "unpin"
	frameTypingStart = "typing-start"
	frameTypingStop  = "typing-stop"
	framePing        = "ping"
)

type postFramePayload struct {
	Content        string `json:"content"`
	Kind           string `json:"kind,omitempty"`
	Metadata       string `json:"metadata,omitempty"`
	ReplyToId      *uint  `json:"reply_to_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type editFramePayload struct {
	MessageId uint   `json:"message_id"`
	Content   string `json:"content"`
}

type messageFramePayload struct {
	MessageId uint `json:"message_id"`
}

type reactFramePayload struct {
	MessageId uint   `json:"message_id"`
	Emoji     string `json:"emoji"`
}
