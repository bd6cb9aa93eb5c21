package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gigspace/internal/domain/entity"
)

// ListTab selects which tickets the conversation list shows.
type ListTab int

const (
	TabAll ListTab = iota
	TabUnread
)

// visibleTickets applies the defensive dedup, the tab filter, the free-text
// filter over last-message content, and the recency sort, in that order.
func visibleTickets(tickets []entity.Ticket, localUserID string, tab ListTab, search string) []entity.Ticket {
	deduped := dedupByKey(tickets, localUserID)

	filtered := make([]entity.Ticket, 0, len(deduped))
	for _, ticket := range deduped {
		if tab == TabUnread && !ticket.HasUnread() {
			continue
		}
		if !matchesSearch(ticket, search) {
			continue
		}
		filtered = append(filtered, ticket)
	}

	sortByRecency(filtered)
	return filtered
}

// dedupByKey keeps the first ticket per conversation key. The aggregator
// already guarantees this; the view is the last line of defense against
// backend-returned duplicates.
func dedupByKey(tickets []entity.Ticket, localUserID string) []entity.Ticket {
	seen := make(map[entity.ConversationKey]bool, len(tickets))
	out := make([]entity.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		key := entity.KeyForTicket(ticket, localUserID)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ticket)
	}
	return out
}

func matchesSearch(ticket entity.Ticket, search string) bool {
	search = strings.TrimSpace(strings.ToLower(search))
	if search == "" {
		return true
	}
	if ticket.LastMessage == nil {
		return false
	}
	return strings.Contains(strings.ToLower(ticket.LastMessage.Content), search)
}

// sortByRecency orders by most recent last message first; tickets with no
// messages sort last. Insertion sort keeps equal-timestamp tickets stable.
func sortByRecency(tickets []entity.Ticket) {
	for i := 1; i < len(tickets); i++ {
		for j := i; j > 0 && moreRecent(tickets[j], tickets[j-1]); j-- {
			tickets[j], tickets[j-1] = tickets[j-1], tickets[j]
		}
	}
}

func moreRecent(a, b entity.Ticket) bool {
	if a.LastMessage == nil {
		return false
	}
	if b.LastMessage == nil {
		return true
	}
	return a.LastMessage.SentAt.After(b.LastMessage.SentAt)
}

// renderList draws the conversation list pane.
func (m Model) renderList(width int) string {
	var b strings.Builder

	tabs := []string{
		tabLabel("All", m.tab == TabAll),
		tabLabel("Unread", m.tab == TabUnread),
	}
	b.WriteString(strings.Join(tabs, "  "))
	b.WriteString("\n")

	if m.searching || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	tickets := m.visible
	if len(tickets) == 0 {
		b.WriteString(dimStyle.Render("No conversations"))
		return b.String()
	}

	for i, ticket := range tickets {
		row := m.renderTicketRow(ticket, width)
		if i == m.cursor {
			row = selectedRowStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderTicketRow(ticket entity.Ticket, width int) string {
	peer := ticket.Peer(m.store.LocalUserID())

	dot := offlineDotStyle.Render("●")
	if m.online[peer] {
		dot = onlineDotStyle.Render("●")
	}

	name := peer
	if user, ok := m.users[peer]; ok {
		name = user.DisplayName()
	}

	label := name
	if !ticket.IsDirect {
		label = fmt.Sprintf("%s · order #%d", name, ticket.OrderID)
	}

	preview := ""
	if ticket.LastMessage != nil {
		preview = dimStyle.Render(truncate(ticket.LastMessage.Content, width/2))
	}

	badge := ""
	if ticket.UnreadCount > 0 {
		badge = " " + unreadBadgeStyle.Render(fmt.Sprintf("%d", ticket.UnreadCount))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, dot, " ", label, badge, "  ", preview)
}

func tabLabel(label string, active bool) string {
	if active {
		return tabActiveStyle.Render(label)
	}
	return tabInactiveStyle.Render(label)
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
