package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atrium-collab/atrium/internal/chaterr"
	"github.com/atrium-collab/atrium/internal/models"
)

const maxFrameBytes = 1 << 20

// Connection wraps one authenticated websocket. The read pump decodes
// command frames and dispatches them to the hub; the write pump drains
// the bounded outbound queue and keeps the heartbeat going. A stalled
// or dead peer never blocks the hub: events are enqueued and either
// flushed, shed or replaced by a resync notice.
type Connection struct {
	hub    *Hub
	userID uint
	ws     *websocket.Conn
	queue  *outQueue

	mu   sync.Mutex
	subs map[uint]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(hub *Hub, userID uint, ws *websocket.Conn) *Connection {
	return &Connection{
		hub:    hub,
		userID: userID,
		ws:     ws,
		queue:  newOutQueue(hub.cfg.OutboundQueueCap),
		subs:   make(map[uint]struct{}),
		done:   make(chan struct{}),
	}
}

func (c *Connection) UserId() uint { return c.userID }

func (c *Connection) enqueue(ev Event) { c.queue.push(ev) }

func (c *Connection) addSub(chatID uint) {
	c.mu.Lock()
	c.subs[chatID] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) removeSub(chatID uint) {
	c.mu.Lock()
	delete(c.subs, chatID)
	c.mu.Unlock()
}

func (c *Connection) subscribed(chatID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[chatID]
	return ok
}

func (c *Connection) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Connection) snapshotSubs() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint, 0, len(c.subs))
	for chatID := range c.subs {
		out = append(out, chatID)
	}
	return out
}

// Run registers the connection with the hub and pumps it until the peer
// goes away. It blocks for the connection's lifetime.
func (c *Connection) Run() {
	c.hub.ConnectionOpened(c)
	go c.writePump()
	c.readPump()
	c.Close()
}

// Close tears the connection down exactly once. Already-submitted
// commands still commit; undelivered outbound events are discarded.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.ConnectionClosed(c)
		c.queue.close()
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Connection) readPump() {
	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatGrace))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatGrace))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error for user %d: %v", c.userID, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatGrace))
		c.hub.Activity(c.userID)

		var frame CommandFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("ws: malformed frame from user %d: %v", c.userID, err)
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.queue.notify:
			for {
				ev, ok := c.queue.pop()
				if !ok {
					break
				}
				_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := c.ws.WriteJSON(ev); err != nil {
					c.Close()
					return
				}
			}
		}
	}
}

func (c *Connection) handleFrame(frame CommandFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*c.hub.cfg.CommandTimeout)
	defer cancel()

	switch frame.Type {
	case framePing:
		c.enqueue(Event{Type: EventPong})

	case frameSubscribe:
		seq, err := c.hub.Subscribe(ctx, c, frame.ChatId)
		c.answer(frame, map[string]uint64{"seq": seq}, err)

	case frameUnsubscribe:
		c.hub.Unsubscribe(c, frame.ChatId)
		c.answer(frame, nil, nil)

	case framePost:
		var p postFramePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.answer(frame, nil, chaterr.Wrap(chaterr.InvalidArgument, "bad post payload", err))
			return
		}
		msg, err := c.hub.PostMessage(ctx, c.userID, frame.ChatId, PostInput{
			Kind:           models.MessageKind(p.Kind),
			Content:        p.Content,
			Metadata:       p.Metadata,
			ReplyToId:      p.ReplyToId,
			IdempotencyKey: p.IdempotencyKey,
		})
		c.answer(frame, msg, err)

	case frameEdit:
		var p editFramePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.answer(frame, nil, chaterr.Wrap(chaterr.InvalidArgument, "bad edit payload", err))
			return
		}
		msg, err := c.hub.EditMessage(ctx, c.userID, frame.ChatId, p.MessageId, p.Content)
		c.answer(frame, msg, err)

	case frameDelete:
		var p messageFramePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.answer(frame, nil, chaterr.Wrap(chaterr.InvalidArgument, "bad delete payload", err))
			return
		}
		c.answer(frame, nil, c.hub.DeleteMessage(ctx, c.userID, frame.ChatId, p.MessageId))

	case frameReactAdd, frameReactRemove:
		var p reactFramePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.answer(frame, nil, chaterr.Wrap(chaterr.InvalidArgument, "bad reaction payload", err))
			return
		}
		var err error
		if frame.Type == frameReactAdd {
			err = c.hub.AddReaction(ctx, c.userID, frame.ChatId, p.MessageId, p.Emoji)
		} else {
			err = c.hub.RemoveReaction(ctx, c.userID, frame.ChatId, p.MessageId, p.Emoji)
		}
		c.answer(frame, nil, err)

	case frameRead:
		var p messageFramePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.answer(frame, nil, chaterr.Wrap(chaterr.InvalidArgument, "bad read payload", err))
			return
		}
		c.answer(frame, nil, c.hub.MarkRead(ctx, c.userID, frame.ChatId, p.MessageId))

	case framePin, frameUnpin:
		var p messageFramePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			c.answer(frame, nil, chaterr.Wrap(chaterr.InvalidArgument, "bad pin payload", err))
			return
		}
		var err error
		if frame.Type == framePin {
			err = c.hub.Pin(ctx, c.userID, frame.ChatId, p.MessageId)
		} else {
			err = c.hub.Unpin(ctx, c.userID, frame.ChatId, p.MessageId)
		}
		c.answer(frame, nil, err)

	case frameTypingStart:
		c.hub.TypingStart(c, frame.ChatId)

	case frameTypingStop:
		c.hub.TypingStop(c, frame.ChatId)

	default:
		c.answer(frame, nil, chaterr.New(chaterr.InvalidArgument, "unknown frame type: "+frame.Type))
	}
}

// answer acks or nacks the command frame. Typing frames never reach
// here; they are fire-and-forget.
func (c *Connection) answer(frame CommandFrame, result any, err error) {
	if err != nil {
		c.enqueue(Event{Type: EventNack, ChatId: frame.ChatId, Data: AckPayload{
			RequestId: frame.RequestId,
			Kind:      string(chaterr.KindOf(err)),
			Reason:    chaterr.ReasonOf(err),
		}})
		return
	}
	c.enqueue(Event{Type: EventAck, ChatId: frame.ChatId, Data: AckPayload{
		RequestId: frame.RequestId,
		Result:    result,
	}})
}
