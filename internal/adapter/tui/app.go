// Package tui renders the messaging views: the conversation list, the
// full-page thread, the floating bubble, and the new-chat prompt. All state
// lives in the shared conversation store; the models here are projections
// plus keyboard routing.
package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gigspace/internal/domain/entity"
	"gigspace/internal/domain/repository"
	"gigspace/internal/usecase"
)

type focusArea int

const (
	focusList focusArea = iota
	focusThread
	focusBubble
)

// Messages delivered through the event channel into the bubbletea loop.
type (
	storeChangedMsg struct{}
	presenceMsg     struct {
		userID string
		online bool
	}
	userLoadedMsg struct {
		user entity.User
	}
	sendResultMsg struct {
		err error
	}
	fetchDoneMsg struct{}
)

const fetchTimeout = 30 * time.Second

type Model struct {
	store    *usecase.ConversationStore
	presence *usecase.PresenceTracker
	userRepo repository.UserRepository

	// events carries store/presence callbacks into the update loop.
	events chan tea.Msg

	width  int
	height int
	focus  focusArea

	tab       ListTab
	search    textinput.Model
	searching bool
	cursor    int
	visible   []entity.Ticket

	activeKey     entity.ConversationKey
	activeOrderID int64
	activePeerID  string
	thread        viewport.Model
	composer      textinput.Model
	lastThreadLen int
	sending       bool

	bubble bubbleState
	prompt promptState

	online          map[string]bool
	users           map[string]entity.User
	userFetches     map[string]bool
	presenceCancels map[string]func()
	storeCancel     func()
}

func New(store *usecase.ConversationStore, presence *usecase.PresenceTracker, users repository.UserRepository) Model {
	search := textinput.New()
	search.Placeholder = "Search messages…"
	search.CharLimit = 128

	composer := textinput.New()
	composer.Placeholder = "Write a message…"
	composer.CharLimit = 2000

	m := Model{
		store:           store,
		presence:        presence,
		userRepo:        users,
		events:          make(chan tea.Msg, 64),
		search:          search,
		composer:        composer,
		thread:          viewport.New(0, 0),
		bubble:          newBubbleState(),
		prompt:          newPromptState(),
		online:          make(map[string]bool),
		users:           make(map[string]entity.User),
		userFetches:     make(map[string]bool),
		presenceCancels: make(map[string]func()),
	}
	m.storeCancel = store.OnChange(func() {
		m.sendEvent(storeChangedMsg{})
	})
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.fetchTicketsCmd())
}

// sendEvent forwards a callback into the update loop without blocking the
// caller. A full queue drops the message; repaints recover by re-reading the
// store and the tracker's last-known presence.
func (m Model) sendEvent(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func (m Model) fetchTicketsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		m.store.FetchTickets(ctx)
		return fetchDoneMsg{}
	}
}

func (m Model) fetchMessagesCmd(orderID int64, receiverID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		m.store.FetchMessages(ctx, orderID, receiverID)
		return fetchDoneMsg{}
	}
}

func (m Model) fetchUserCmd(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		user, err := m.userRepo.GetByID(ctx, id)
		if err != nil {
			// A missing descriptor only degrades the label; the id renders.
			return fetchDoneMsg{}
		}
		return userLoadedMsg{user: *user}
	}
}

func (m Model) sendMessageCmd(content, receiverID string, orderID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return sendResultMsg{err: m.store.SendMessage(ctx, content, receiverID, orderID)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.thread = viewport.New(m.threadWidth(), m.threadHeight())
		m.refreshThread(true)
		return m, nil

	case storeChangedMsg:
		cmds := m.refreshFromStore()
		return m, tea.Batch(append(cmds, m.waitForEvent())...)

	case presenceMsg:
		m.online[msg.userID] = msg.online
		return m, m.waitForEvent()

	case userLoadedMsg:
		m.users[msg.user.ID] = msg.user
		return m, nil

	case sendResultMsg:
		m.sending = false
		return m, nil

	case fetchDoneMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// refreshFromStore re-derives the visible ticket list, keeps presence and
// user-descriptor subscriptions in step with it, and updates the thread pane.
func (m *Model) refreshFromStore() []tea.Cmd {
	m.visible = visibleTickets(m.store.Tickets(), m.store.LocalUserID(), m.tab, m.search.Value())
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	var cmds []tea.Cmd
	for _, ticket := range m.visible {
		peer := ticket.Peer(m.store.LocalUserID())
		if _, ok := m.presenceCancels[peer]; !ok {
			m.presenceCancels[peer] = m.watchPresence(peer)
		}
		if _, ok := m.users[peer]; !ok && !m.userFetches[peer] {
			m.userFetches[peer] = true
			cmds = append(cmds, m.fetchUserCmd(peer))
		}
	}

	// Presence transitions can be dropped under load; the tracker keeps the
	// last observed state, so every repaint reconciles the dots.
	for peer := range m.presenceCancels {
		m.online[peer] = m.presence.Online(peer)
	}
	if m.bubble.open {
		m.online[m.bubble.peer] = m.presence.Online(m.bubble.peer)
	}

	m.refreshThread(false)
	return cmds
}

// watchPresence subscribes one peer and routes transitions into the loop.
func (m Model) watchPresence(peer string) func() {
	return m.presence.Subscribe(peer, func(online bool) {
		m.sendEvent(presenceMsg{userID: peer, online: online})
	})
}

func (m *Model) refreshThread(force bool) {
	if m.activeKey == "" {
		return
	}

	messages := m.store.Messages(m.activeKey)
	grew := len(messages) > m.lastThreadLen
	m.lastThreadLen = len(messages)

	m.thread.SetContent(renderMessages(messages, m.store.LocalUserID(), m.threadWidth()))
	if grew || force {
		m.thread.GotoBottom()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.prompt.open {
		return m.handlePromptKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch m.focus {
	case focusThread:
		return m.handleThreadKey(msg)
	case focusBubble:
		return m.handleBubbleKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m.quit()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case "tab":
		if m.tab == TabAll {
			m.tab = TabUnread
		} else {
			m.tab = TabAll
		}
		m.cursor = 0
		m.refreshFromStore()
	case "/":
		m.searching = true
		m.search.Focus()
	case "n":
		m.prompt.show()
	case "b":
		if ticket, ok := m.selectedTicket(); ok {
			return m.openBubble(ticket)
		}
	case "enter":
		if ticket, ok := m.selectedTicket(); ok {
			return m.openThread(ticket)
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
	case "esc":
		m.searching = false
		m.search.SetValue("")
		m.search.Blur()
	default:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		m.refreshFromStore()
		return m, cmd
	}
	m.refreshFromStore()
	return m, nil
}

func (m Model) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusList
		m.composer.Blur()
		return m, nil
	case "enter":
		return m.submitComposer()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.thread, cmd = m.thread.Update(msg)
		return m, cmd
	default:
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
}

func (m Model) handleBubbleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.bubble.close()
		m.focus = focusList
		return m, nil
	case "ctrl+n":
		m.bubble.minimized = !m.bubble.minimized
		return m, nil
	case "enter":
		if m.bubble.minimized {
			m.bubble.minimized = false
			return m, nil
		}
		content := strings.TrimSpace(m.bubble.composer.Value())
		if content == "" || m.sending {
			return m, nil
		}
		m.bubble.composer.SetValue("")
		m.sending = true
		return m, m.sendMessageCmd(content, m.bubble.peer, 0)
	default:
		if m.bubble.minimized {
			return m, nil
		}
		var cmd tea.Cmd
		m.bubble.composer, cmd = m.bubble.composer.Update(msg)
		return m, cmd
	}
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompt.hide()
		return m, nil
	case "tab":
		m.prompt.nextField()
		return m, nil
	case "enter":
		if !m.prompt.ready() {
			m.prompt.nextField()
			return m, nil
		}
		peer := strings.TrimSpace(m.prompt.peer.Value())
		content := m.prompt.message.Value()
		m.prompt.hide()
		m.sending = true
		return m, m.sendMessageCmd(content, peer, 0)
	default:
		var cmd tea.Cmd
		if m.prompt.focused == 0 {
			m.prompt.peer, cmd = m.prompt.peer.Update(msg)
		} else {
			m.prompt.message, cmd = m.prompt.message.Update(msg)
		}
		return m, cmd
	}
}

func (m Model) selectedTicket() (entity.Ticket, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return entity.Ticket{}, false
	}
	return m.visible[m.cursor], true
}

// openThread activates a conversation: optimistic mark-as-read, history
// fetch, and composer focus.
func (m Model) openThread(ticket entity.Ticket) (tea.Model, tea.Cmd) {
	local := m.store.LocalUserID()
	m.activeKey = entity.KeyForTicket(ticket, local)
	m.activeOrderID = ticket.OrderID
	m.activePeerID = ticket.Peer(local)
	m.lastThreadLen = 0
	m.focus = focusThread
	m.composer.Focus()

	if ticket.OrderID != 0 {
		m.store.MarkMessagesAsRead(ticket.OrderID, "")
		return m, m.fetchMessagesCmd(ticket.OrderID, "")
	}
	m.store.MarkMessagesAsRead(0, m.activePeerID)
	return m, m.fetchMessagesCmd(0, m.activePeerID)
}

func (m Model) openBubble(ticket entity.Ticket) (tea.Model, tea.Cmd) {
	local := m.store.LocalUserID()
	key := entity.KeyForTicket(ticket, local)
	peer := ticket.Peer(local)

	m.bubble.openFor(key, peer, m.watchPresence)
	m.focus = focusBubble
	m.store.MarkMessagesAsRead(ticket.OrderID, peer)

	if ticket.OrderID != 0 {
		return m, m.fetchMessagesCmd(ticket.OrderID, "")
	}
	return m, m.fetchMessagesCmd(0, peer)
}

func (m Model) activePeer() string {
	if m.activeKey.IsDirect() {
		return m.activeKey.PeerID()
	}
	return m.activePeerID
}

func (m Model) submitComposer() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.composer.Value())
	if content == "" || m.sending {
		return m, nil
	}

	// The composer clears on the attempt; the store owns success/failure.
	m.composer.SetValue("")
	m.sending = true

	receiver := m.activePeer()
	return m, m.sendMessageCmd(content, receiver, m.activeOrderID)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.storeCancel != nil {
		m.storeCancel()
	}
	for _, cancel := range m.presenceCancels {
		cancel()
	}
	m.bubble.close()
	return m, tea.Quit
}

func (m Model) threadWidth() int {
	w := m.width - m.listWidth() - 3
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) listWidth() int {
	w := m.width * 2 / 5
	if w < 28 {
		w = 28
	}
	return w
}

func (m Model) threadHeight() int {
	h := m.height - 8
	if h < 5 {
		h = 5
	}
	return h
}

func (m Model) View() string {
	header := headerStyle.Render("GigSpace Messages")
	if unread := m.store.TotalUnread(); unread > 0 {
		header += " " + unreadBadgeStyle.Render(unreadLabel(unread))
	}
	if m.store.Loading() {
		header += " " + dimStyle.Render("loading…")
	}
	if errText := m.store.Error(); errText != "" {
		header += "\n" + errorStyle.Render(errText)
	}

	if m.prompt.open {
		return header + "\n\n" + m.renderPrompt()
	}

	list := lipgloss.NewStyle().Width(m.listWidth()).Render(m.renderList(m.listWidth()))
	thread := m.renderThread(m.threadWidth(), m.threadHeight())
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", thread)

	out := header + "\n\n" + body
	if m.bubble.open {
		out += "\n" + m.renderBubble(m.width)
	}
	out += "\n" + dimStyle.Render("enter: open · tab: unread · /: search · n: new chat · b: bubble · q: quit")
	return out
}

func unreadLabel(n int) string {
	if n > 99 {
		return "99+"
	}
	return strconv.Itoa(n)
}
