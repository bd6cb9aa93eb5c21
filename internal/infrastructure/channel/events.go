package channel

import (
	"encoding/json"
	"time"
)

// Actions emitted by the client.
const (
	ActionJoinUser    = "joinUser"
	ActionJoinOrder   = "joinOrder"
	ActionJoinDirect  = "joinDirect"
	ActionSendMessage = "sendMessage"
	ActionViewChat    = "viewChat"
	ActionCheckOnline = "checkOnline"
)

// Events pushed by the backend.
const (
	EventNewMessage   = "newMessage"
	EventMessagesRead = "messagesRead"
	EventUserOnline   = "userOnline"
	EventUserOffline  = "userOffline"
)

// Frame is the wire envelope for both directions: an event name, an optional
// correlation id for acknowledged actions, and the event payload.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack carries the one-shot result of an acknowledged action.
type Ack struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type JoinUserPayload struct {
	UserID string `json:"userId"`
}

type JoinOrderPayload struct {
	OrderID int64 `json:"orderId"`
}

type JoinDirectPayload struct {
	Room string `json:"room"`
}

type SendMessagePayload struct {
	OrderID    int64     `json:"order_id,omitempty"`
	SenderID   string    `json:"sender_id" validate:"required"`
	ReceiverID string    `json:"receiver_id" validate:"required"`
	Content    string    `json:"content" validate:"required"`
	SentAt     time.Time `json:"sent_at"`
	IsDirect   bool      `json:"is_direct"`
}

type ViewChatPayload struct {
	OrderID    int64  `json:"orderId,omitempty"`
	ReceiverID string `json:"receiverId,omitempty"`
	UserID     string `json:"userId"`
}

type CheckOnlinePayload struct {
	UserID string `json:"userId"`
}

type MessagesReadPayload struct {
	OrderID    int64   `json:"orderId,omitempty"`
	ReceiverID string  `json:"receiverId,omitempty"`
	MessageIDs []int64 `json:"messageIds"`
	UserID     string  `json:"userId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}
