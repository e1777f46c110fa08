package model

import "github.com/deskhive/realtime/internal/entity"

type GetMessagesRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
	Before int64  `json:"before,omitempty"`
}

type GetMessagesResponse struct {
	Messages []entity.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"has_more"`
	Cursor   int64                `json:"cursor"`
}

type SendMessageRequest struct {
	RoomID     string             `json:"room_id"`
	Content    string             `json:"content"`
	Kind       entity.MessageKind `json:"kind"`
	Attachment *entity.Attachment `json:"attachment,omitempty"`
	ClientID   string             `json:"client_id,omitempty"`
}

type SendMessageResponse struct {
	Message entity.ChatMessage `json:"message"`
}

type MarkRoomAsReadRequest struct {
	RoomID string `json:"room_id"`
}
