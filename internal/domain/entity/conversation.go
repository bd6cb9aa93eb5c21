package entity

import (
	"fmt"
	"strings"
)

// ConversationKey canonically identifies a conversation: "order_<id>" for
// order-scoped tickets, "direct_<peerId>" for peer-to-peer chats. The peer id,
// never the local user id, forms the direct key, so both sides of a chat index
// it consistently from their own perspective.
type ConversationKey string

const (
	orderKeyPrefix  = "order_"
	directKeyPrefix = "direct_"
)

// KeyFor derives the conversation key for a message as seen by localUserID.
func KeyFor(m Message, localUserID string) ConversationKey {
	if m.OrderID != 0 {
		return OrderKey(m.OrderID)
	}
	return DirectKey(m.Peer(localUserID))
}

// KeyForTicket derives the conversation key for a ticket as seen by localUserID.
func KeyForTicket(t Ticket, localUserID string) ConversationKey {
	if t.OrderID != 0 {
		return OrderKey(t.OrderID)
	}
	return DirectKey(t.Peer(localUserID))
}

func OrderKey(orderID int64) ConversationKey {
	return ConversationKey(fmt.Sprintf("%s%d", orderKeyPrefix, orderID))
}

func DirectKey(peerID string) ConversationKey {
	return ConversationKey(directKeyPrefix + peerID)
}

func (k ConversationKey) IsDirect() bool {
	return strings.HasPrefix(string(k), directKeyPrefix)
}

// PeerID returns the peer id encoded in a direct key, or "" for order keys.
func (k ConversationKey) PeerID() string {
	if !k.IsDirect() {
		return ""
	}
	return strings.TrimPrefix(string(k), directKeyPrefix)
}

// DirectRoom builds the room name both peers of a direct chat join. The ids
// are sorted lexicographically so either side computes the same name
// regardless of who initiated the conversation.
func DirectRoom(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
