package entity

import "time"

type Message struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id,omitempty"` // 0 for direct messages
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`
	IsRead     bool      `json:"is_read"`
	IsDirect   bool      `json:"is_direct"`
}

// Peer returns the participant that is not the local user. A self-chat
// degenerates to the local user id itself.
func (m Message) Peer(localUserID string) string {
	if m.SenderID != localUserID {
		return m.SenderID
	}
	return m.ReceiverID
}

// UnreadFor reports whether the message counts against the unread total of
// the given user: addressed to them and not yet read.
func (m Message) UnreadFor(userID string) bool {
	return m.ReceiverID == userID && !m.IsRead
}

// Summary trims a message down to what ticket lists need.
func (m Message) Summary() *MessageSummary {
	return &MessageSummary{
		ID:       m.ID,
		SenderID: m.SenderID,
		Content:  m.Content,
		SentAt:   m.SentAt,
		IsRead:   m.IsRead,
	}
}

type MessageSummary struct {
	ID       int64     `json:"id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
	IsRead   bool      `json:"is_read"`
}
