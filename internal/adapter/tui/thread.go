package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gigspace/internal/domain/entity"
)

// renderThread draws the active conversation: recipient header, message
// history aligned by sender, and the composer.
func (m Model) renderThread(width, height int) string {
	if m.activeKey == "" {
		return dimStyle.Render("Select a conversation")
	}

	var b strings.Builder
	b.WriteString(m.renderRecipientHeader())
	b.WriteString("\n")
	b.WriteString(m.thread.View())
	b.WriteString("\n")
	b.WriteString(m.composer.View())
	return b.String()
}

func (m Model) renderRecipientHeader() string {
	peer := m.activePeer()
	name := peer
	if user, ok := m.users[peer]; ok {
		name = user.DisplayName()
	}

	status := offlineDotStyle.Render("● offline")
	if m.online[peer] {
		status = onlineDotStyle.Render("● online")
	}

	title := name
	if !m.activeKey.IsDirect() {
		title = fmt.Sprintf("%s · %s", name, m.activeKey)
	}

	return headerStyle.Render(title) + "  " + status
}

// renderMessages lays the history out for the viewport, own messages on the
// right, the peer's on the left.
func renderMessages(messages []entity.Message, localUserID string, width int) string {
	if len(messages) == 0 {
		return dimStyle.Render("No messages yet")
	}

	lines := make([]string, 0, len(messages)*2)
	for _, msg := range messages {
		stamp := dimStyle.Render(msg.SentAt.Local().Format("15:04"))
		body := wrapContent(msg.Content, width*2/3)

		if msg.SenderID == localUserID {
			block := ownMessageStyle.Render(body) + " " + stamp
			lines = append(lines, lipgloss.NewStyle().Width(width).Align(lipgloss.Right).Render(block))
		} else {
			block := stamp + " " + peerMessageStyle.Render(body)
			lines = append(lines, block)
		}
	}

	return strings.Join(lines, "\n")
}

// wrapContent word-wraps to max columns, keeping the author's own line
// breaks.
func wrapContent(s string, max int) string {
	if max < 8 {
		max = 8
	}

	lines := strings.Split(s, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		wrapped = append(wrapped, wrapLine(line, max))
	}
	return strings.Join(wrapped, "\n")
}

func wrapLine(s string, max int) string {
	var b strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(s) {
		wordLen := len([]rune(word))
		if lineLen > 0 && lineLen+1+wordLen > max {
			b.WriteString("\n")
			lineLen = 0
		} else if lineLen > 0 {
			b.WriteString(" ")
			lineLen++
		}
		b.WriteString(word)
		lineLen += wordLen
	}
	return b.String()
}
