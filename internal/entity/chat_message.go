package entity

import "time"

type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindImage  MessageKind = "image"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// ChatMessage is one entry of a room's log. ID is the server-assigned id and
// is 0 while the message is still an unacknowledged local send; TempID is the
// client-generated id assigned to such sends and keeps the entry addressable
// until the authoritative id arrives.
type ChatMessage struct {
	ID       int64  `json:"id"`
	TempID   int64  `json:"temp_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	RoomID     string         `json:"room_id"`
	AuthorID   string         `json:"author_id"`
	Content    string         `json:"content"`
	Kind       MessageKind    `json:"kind"`
	Attachment *Attachment    `json:"attachment,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Edited     bool           `json:"edited,omitempty"`
	Pending    bool           `json:"pending,omitempty"`
	Reactions  []ChatReaction `json:"reactions,omitempty"`
}

// Acknowledged reports whether the message carries its authoritative id.
func (m *ChatMessage) Acknowledged() bool {
	return m.ID != 0
}
