package entity

const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

type Ticket struct {
	TicketID     string          `json:"ticket_id"`
	OrderID      int64           `json:"order_id,omitempty"` // 0 for direct tickets
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	OrderStatus  string          `json:"order_status,omitempty"`
	Status       string          `json:"status"`
	LastMessage  *MessageSummary `json:"last_message,omitempty"`
	MessageCount int             `json:"message_count"`
	UnreadCount  int             `json:"unread_count"`
	IsDirect     bool            `json:"is_direct"`
}

// Peer returns whichever of buyer/seller is not the local user.
func (t Ticket) Peer(localUserID string) string {
	if t.BuyerID != localUserID {
		return t.BuyerID
	}
	return t.SellerID
}

// HasUnread reports whether the ticket should appear under the unread tab:
// it has messages and the latest one has not been read.
func (t Ticket) HasUnread() bool {
	return t.MessageCount > 0 && t.LastMessage != nil && !t.LastMessage.IsRead
}
