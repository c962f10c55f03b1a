package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MessageKind distinguishes how a message should be rendered.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindQuickReply MessageKind = "quick_reply"
	KindAlertCard  MessageKind = "alert_card"
)

// Message is one entry in a conversation.
type Message struct {
	ID           uuid.UUID   `json:"id"`
	Content      string      `json:"content"`
	IsUser       bool        `json:"isUser"`
	Timestamp    time.Time   `json:"timestamp"`
	Kind         MessageKind `json:"kind"`
	ImageCount   int         `json:"imageCount,omitempty"`
	QuickReplies []string    `json:"quickReplies,omitempty"`
	AlertCard    *AlertCard  `json:"alertCard,omitempty"`
}

// Conversation is a message history that always starts with a welcome
// message. It is safe for concurrent use.
type Conversation struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	messages []Message
}

// NewConversation starts a conversation. A nil clock uses the real clock.
func NewConversation(clock clockwork.Clock) *Conversation {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Conversation{clock: clock}
	c.messages = []Message{c.welcome()}
	return c
}

// Send records the user's message and the assistant's reply and returns the
// reply.
func (c *Conversation) Send(text string, imageCount int) Message {
	reply := Respond(text, imageCount)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, Message{
		ID:         uuid.New(),
		Content:    text,
		IsUser:     true,
		Timestamp:  c.clock.Now(),
		Kind:       KindText,
		ImageCount: imageCount,
	})
	bot := Message{
		ID:           uuid.New(),
		Content:      reply.Content,
		Timestamp:    c.clock.Now(),
		Kind:         kindOf(reply),
		QuickReplies: reply.QuickReplies,
		AlertCard:    reply.AlertCard,
	}
	c.messages = append(c.messages, bot)
	return bot
}

// Messages returns a copy of the history, oldest first.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Clear drops the history and starts over with a fresh welcome message.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []Message{c.welcome()}
}

func (c *Conversation) welcome() Message {
	return Message{
		ID:        uuid.New(),
		Content:   welcomeText,
		Timestamp: c.clock.Now(),
		Kind:      KindText,
	}
}

func kindOf(r Reply) MessageKind {
	switch {
	case r.AlertCard != nil:
		return KindAlertCard
	case len(r.QuickReplies) > 0:
		return KindQuickReply
	default:
		return KindText
	}
}
