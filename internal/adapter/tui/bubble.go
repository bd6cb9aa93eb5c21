package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"

	"gigspace/internal/domain/entity"
)

// bubbleState is the floating chat bubble: a compact view of one
// conversation that stays up while the user browses the rest of the app. It
// holds its own presence subscription for the single recipient; messages live
// in the shared store, so minimizing or closing loses nothing.
type bubbleState struct {
	open      bool
	minimized bool
	key       entity.ConversationKey
	peer      string
	composer  textinput.Model
	cancel    func()
}

func newBubbleState() bubbleState {
	composer := textinput.New()
	composer.Placeholder = "Reply…"
	composer.CharLimit = 2000
	return bubbleState{composer: composer}
}

// openFor points the bubble at a conversation and starts watching the
// recipient's presence.
func (b *bubbleState) openFor(key entity.ConversationKey, peer string, watch func(string) func()) {
	b.close()
	b.open = true
	b.minimized = false
	b.key = key
	b.peer = peer
	b.composer.SetValue("")
	b.composer.Focus()
	b.cancel = watch(peer)
}

func (b *bubbleState) close() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.open = false
	b.minimized = false
	b.key = ""
	b.peer = ""
	b.composer.Blur()
}

func (m Model) renderBubble(width int) string {
	b := m.bubble
	peerName := b.peer
	if user, ok := m.users[b.peer]; ok {
		peerName = user.DisplayName()
	}

	dot := offlineDotStyle.Render("●")
	if m.online[b.peer] {
		dot = onlineDotStyle.Render("●")
	}

	unread := 0
	for _, ticket := range m.store.Tickets() {
		if entity.KeyForTicket(ticket, m.store.LocalUserID()) == b.key {
			unread = ticket.UnreadCount
		}
	}

	title := fmt.Sprintf("%s %s", dot, peerName)
	if unread > 0 {
		title += " " + unreadBadgeStyle.Render(fmt.Sprintf("%d", unread))
	}

	if b.minimized {
		return bubbleBorderStyle.Render(title + dimStyle.Render("  ctrl+n: expand"))
	}

	messages := m.store.Messages(b.key)
	start := 0
	if len(messages) > 5 {
		start = len(messages) - 5
	}

	var body strings.Builder
	body.WriteString(title)
	body.WriteString("\n")
	body.WriteString(renderMessages(messages[start:], m.store.LocalUserID(), width/2))
	body.WriteString("\n")
	body.WriteString(b.composer.View())

	return bubbleBorderStyle.Render(body.String())
}
