package model

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/deskhive/realtime/internal/entity"
)

// Inbound event types.
const (
	EventMessageNew      = "message_new"
	EventMessageEdited   = "message_edited"
	EventMessageDeleted  = "message_deleted"
	EventReactionAdded   = "reaction_added"
	EventReactionRemoved = "reaction_removed"
	EventUserTyping      = "user_typing"
)

// Outbound event types.
const (
	EventTyping         = "typing"
	EventReactionAdd    = "reaction_add"
	EventReactionRemove = "reaction_remove"
	EventPing           = "ping"
)

type MessageReaction struct {
	MessageID int64  `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// Event is the wire frame for both directions. Type discriminates which of
// the remaining fields are meaningful.
type Event struct {
	Type string `json:"type"`

	Message   *entity.ChatMessage `json:"message,omitempty"`
	MessageID int64               `json:"message_id,omitempty"`
	Reaction  *MessageReaction    `json:"reaction,omitempty"`
	UserID    string              `json:"user_id,omitempty"`
	Emoji     string              `json:"emoji,omitempty"`
	IsTyping  bool                `json:"is_typing"`
	Timestamp int64               `json:"timestamp,omitempty"`
}

func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal event")
	}

	if ev.Type == "" {
		return nil, errors.New("event without type")
	}

	return &ev, nil
}

func NewTypingEvent(isTyping bool) *Event {
	return &Event{Type: EventTyping, IsTyping: isTyping}
}

func NewReactionAddEvent(messageID int64, emoji string) *Event {
	return &Event{Type: EventReactionAdd, MessageID: messageID, Emoji: emoji}
}

func NewReactionRemoveEvent(messageID int64, emoji string) *Event {
	return &Event{Type: EventReactionRemove, MessageID: messageID, Emoji: emoji}
}

func NewPingEvent(timestamp int64) *Event {
	return &Event{Type: EventPing, Timestamp: timestamp}
}
