package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
)

// promptState is the "new chat" prompt: the entry point a gig page uses to
// open a direct conversation with a seller. It collects a peer id and a first
// message; the send goes through the store like any other.
type promptState struct {
	open    bool
	peer    textinput.Model
	message textinput.Model
	focused int // 0 = peer field, 1 = message field
}

func newPromptState() promptState {
	peer := textinput.New()
	peer.Placeholder = "Seller id"
	peer.CharLimit = 128

	message := textinput.New()
	message.Placeholder = "Say hello…"
	message.CharLimit = 2000

	return promptState{peer: peer, message: message}
}

func (p *promptState) show() {
	p.open = true
	p.focused = 0
	p.peer.SetValue("")
	p.message.SetValue("")
	p.peer.Focus()
	p.message.Blur()
}

func (p *promptState) hide() {
	p.open = false
	p.peer.Blur()
	p.message.Blur()
}

func (p *promptState) nextField() {
	p.focused = (p.focused + 1) % 2
	if p.focused == 0 {
		p.peer.Focus()
		p.message.Blur()
	} else {
		p.peer.Blur()
		p.message.Focus()
	}
}

func (p *promptState) ready() bool {
	return strings.TrimSpace(p.peer.Value()) != "" && strings.TrimSpace(p.message.Value()) != ""
}

func (m Model) renderPrompt() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("New conversation"))
	b.WriteString("\n\n")
	b.WriteString(m.prompt.peer.View())
	b.WriteString("\n")
	b.WriteString(m.prompt.message.View())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("tab: switch field · enter: send · esc: cancel"))
	return bubbleBorderStyle.Render(b.String())
}
