package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"gigspace/internal/domain/entity"
	"gigspace/internal/domain/repository"
	"gigspace/internal/infrastructure/channel"
	"gigspace/pkg/debounce"
	"gigspace/pkg/errors"
	"gigspace/pkg/logger"
)

// readDebounceWindow coalesces rapid mark-as-read calls (a user flicking
// through conversations) into one viewChat emission per conversation.
const readDebounceWindow = 300 * time.Millisecond

var validate = validator.New()

// ConversationStore is the state machine behind every messaging view. It
// holds the unified ticket list and the per-conversation message lists, and
// reconciles three inputs: REST fetches, send acknowledgements, and pushed
// channel events. Every mutation path merges idempotently: applying the same
// message or read event twice never duplicates entries or double-counts.
type ConversationStore struct {
	localUserID string
	messages    repository.MessageRepository
	channel     EventChannel
	reads       *debounce.Debouncer

	mu            sync.Mutex
	messagesByKey map[entity.ConversationKey][]entity.Message
	tickets       []entity.Ticket
	loading       bool
	lastError     string
	listeners     map[int]func()
	nextListener  int
	cancels       []func()
	started       bool
}

func NewConversationStore(localUserID string, messages repository.MessageRepository, ch EventChannel) *ConversationStore {
	return &ConversationStore{
		localUserID:   localUserID,
		messages:      messages,
		channel:       ch,
		reads:         debounce.New(readDebounceWindow),
		messagesByKey: make(map[entity.ConversationKey][]entity.Message),
		listeners:     make(map[int]func()),
	}
}

// Start joins the per-user room and registers the pushed-event reducers.
// Idempotent; a second call is a no-op.
func (s *ConversationStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.channel.JoinUserRoom(s.localUserID); err != nil {
		return err
	}

	cancelNew := s.channel.On(channel.EventNewMessage, s.handleNewMessage)
	cancelRead := s.channel.On(channel.EventMessagesRead, s.handleMessagesRead)

	cancelDrop := s.channel.OnDisconnect(func() {
		// Pushed events were lost silently while disconnected; re-fetch
		// instead of assuming delivery.
		logger.Warn("store: channel dropped, re-syncing tickets")
		resyncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.FetchTickets(resyncCtx)
	})

	s.mu.Lock()
	s.cancels = append(s.cancels, cancelNew, cancelRead, cancelDrop)
	s.mu.Unlock()

	return nil
}

// Stop removes the store's channel handlers, its disconnect hook included,
// and drops pending debounced emissions. The shared connection itself stays
// up for other subscribers.
func (s *ConversationStore) Stop() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.started = false
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.reads.Stop()
}

// FetchTickets loads order-scoped tickets and all direct messages for the
// local user, folds the direct messages into synthesized tickets, and merges
// the result into one deduplicated list. On failure the existing tickets are
// left untouched; the error is surfaced as state.
func (s *ConversationStore) FetchTickets(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	orderTickets, err := s.messages.FetchTickets(ctx)
	if err != nil {
		s.setError(err)
		return
	}

	directMessages, err := s.messages.FetchDirectMessages(ctx, "")
	if err != nil {
		s.setError(err)
		return
	}

	s.mu.Lock()
	for _, msg := range directMessages {
		s.mergeMessageLocked(msg)
	}
	s.tickets = dedupTickets(append(orderTickets, s.foldDirectMessages(directMessages)...), s.localUserID)
	s.lastError = ""
	s.mu.Unlock()

	s.notify()
}

// FetchMessages loads the history of one conversation and merges it into the
// store. Exactly one of orderID/receiverID identifies the conversation; both
// zero means the local user's whole direct history. The conversation room is
// joined so subsequent pushes reach this client.
func (s *ConversationStore) FetchMessages(ctx context.Context, orderID int64, receiverID string) {
	s.setLoading(true)
	defer s.setLoading(false)

	var fetched []entity.Message
	var err error

	switch {
	case orderID != 0:
		s.channel.JoinOrderRoom(orderID)
		fetched, err = s.messages.FetchOrderMessages(ctx, orderID)
	case receiverID != "":
		s.channel.JoinDirectRoom(s.localUserID, receiverID)
		fetched, err = s.messages.FetchDirectMessages(ctx, receiverID)
	default:
		fetched, err = s.messages.FetchDirectMessages(ctx, "")
	}

	if err != nil {
		s.setError(err)
		return
	}

	s.mu.Lock()
	for _, msg := range fetched {
		s.mergeMessageLocked(msg)
	}
	s.lastError = ""
	s.mu.Unlock()

	s.notify()
}

// SendMessage emits the message over the channel and waits for the
// acknowledgement. The confirmed message, carrying its server-assigned id, is
// merged on success; nothing is inserted speculatively, so a failed send
// leaves no ghost entry behind.
func (s *ConversationStore) SendMessage(ctx context.Context, content, receiverID string, orderID int64) error {
	payload := channel.SendMessagePayload{
		OrderID:    orderID,
		SenderID:   s.localUserID,
		ReceiverID: receiverID,
		Content:    strings.TrimSpace(content),
		SentAt:     time.Now().UTC(),
		IsDirect:   orderID == 0,
	}
	if err := validate.Struct(payload); err != nil {
		return errors.BadRequest("message is missing required fields", err)
	}

	ack, err := s.channel.EmitWithAck(ctx, channel.ActionSendMessage, payload)
	if err != nil {
		s.setError(err)
		return err
	}
	if !ack.Success {
		msg := ack.Error
		if msg == "" {
			msg = ack.Message
		}
		sendErr := errors.Application(backendMessage(msg, "failed to send message"), nil)
		s.setError(sendErr)
		return sendErr
	}

	var confirmed entity.Message
	if err := json.Unmarshal(ack.Data, &confirmed); err != nil || confirmed.ID == 0 {
		sendErr := errors.Malformed("send acknowledgement carries no message", err)
		s.setError(sendErr)
		return sendErr
	}

	s.applyNewMessage(confirmed)
	return nil
}

// MarkMessagesAsRead zeroes the unread count of the matching conversation
// immediately and schedules one debounced viewChat emission. The local update
// is optimistic: read-state is advisory and reconciled by the messagesRead
// event.
func (s *ConversationStore) MarkMessagesAsRead(orderID int64, receiverID string) {
	var key entity.ConversationKey
	payload := channel.ViewChatPayload{UserID: s.localUserID}

	switch {
	case orderID != 0:
		key = entity.OrderKey(orderID)
		payload.OrderID = orderID
	case receiverID != "":
		key = entity.DirectKey(receiverID)
		payload.ReceiverID = receiverID
	default:
		return
	}

	s.mu.Lock()
	s.markReadLocked(key, nil)
	s.mu.Unlock()
	s.notify()

	s.reads.Do(string(key), func() {
		if err := s.channel.Emit(channel.ActionViewChat, payload); err != nil {
			logger.Warn("store: viewChat emit failed: %v", err)
		}
	})
}

// handleNewMessage is the reducer for pushed newMessage events.
func (s *ConversationStore) handleNewMessage(data json.RawMessage) {
	var msg entity.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("store: dropping malformed newMessage event: %v", err)
		return
	}
	if msg.ID == 0 {
		return
	}

	s.applyNewMessage(msg)
}

// handleMessagesRead is the reducer for pushed messagesRead events. Events
// about another user's read-state are ignored; rooms overlap and the push is
// not scoped per recipient.
func (s *ConversationStore) handleMessagesRead(data json.RawMessage) {
	var payload channel.MessagesReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		logger.Warn("store: dropping malformed messagesRead event: %v", err)
		return
	}
	if payload.UserID != s.localUserID {
		return
	}

	var key entity.ConversationKey
	switch {
	case payload.OrderID != 0:
		key = entity.OrderKey(payload.OrderID)
	case payload.ReceiverID != "":
		key = entity.DirectKey(payload.ReceiverID)
	default:
		return
	}

	s.mu.Lock()
	s.markReadLocked(key, payload.MessageIDs)
	s.mu.Unlock()
	s.notify()
}

// applyNewMessage merges one confirmed or pushed message. Redelivery is
// expected: a message whose id is already present leaves both the list and
// the ticket counters untouched.
func (s *ConversationStore) applyNewMessage(msg entity.Message) {
	key := entity.KeyFor(msg, s.localUserID)

	s.mu.Lock()
	if !s.mergeMessageLocked(msg) {
		s.mu.Unlock()
		return
	}

	idx := s.ticketIndexLocked(key)
	if idx < 0 {
		s.tickets = append(s.tickets, s.synthesizeTicket(msg))
		idx = len(s.tickets) - 1
	} else {
		s.tickets[idx].MessageCount++
		if msg.UnreadFor(s.localUserID) {
			s.tickets[idx].UnreadCount++
		}
	}
	ticket := &s.tickets[idx]
	if ticket.LastMessage == nil || !msg.SentAt.Before(ticket.LastMessage.SentAt) {
		ticket.LastMessage = msg.Summary()
	}
	s.mu.Unlock()

	s.notify()
}

// markReadLocked flips local copies to read and zeroes the ticket's unread
// count. With ids it touches only the listed messages plus everything
// addressed to the local user; without ids (the optimistic path) it reads
// everything addressed to the local user in the conversation.
func (s *ConversationStore) markReadLocked(key entity.ConversationKey, messageIDs []int64) {
	listed := make(map[int64]bool, len(messageIDs))
	for _, id := range messageIDs {
		listed[id] = true
	}

	msgs := s.messagesByKey[key]
	for i := range msgs {
		if listed[msgs[i].ID] || msgs[i].ReceiverID == s.localUserID {
			msgs[i].IsRead = true
		}
	}

	if idx := s.ticketIndexLocked(key); idx >= 0 {
		s.tickets[idx].UnreadCount = 0
		last := s.tickets[idx].LastMessage
		if last != nil && last.SenderID != s.localUserID {
			last.IsRead = true
		}
	}
}

// mergeMessageLocked inserts a message into its conversation list keeping
// SentAt order. Returns false when the id is already present.
func (s *ConversationStore) mergeMessageLocked(msg entity.Message) bool {
	key := entity.KeyFor(msg, s.localUserID)
	msgs := s.messagesByKey[key]

	for _, existing := range msgs {
		if existing.ID == msg.ID {
			return false
		}
	}

	pos := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].SentAt.After(msg.SentAt)
	})
	msgs = append(msgs, entity.Message{})
	copy(msgs[pos+1:], msgs[pos:])
	msgs[pos] = msg
	s.messagesByKey[key] = msgs
	return true
}

// foldDirectMessages synthesizes one ticket per peer from raw direct
// messages: running message count, latest message, and unread total for the
// local user.
func (s *ConversationStore) foldDirectMessages(messages []entity.Message) []entity.Ticket {
	byPeer := make(map[string]*entity.Ticket)
	order := make([]string, 0)

	for _, msg := range messages {
		peer := msg.Peer(s.localUserID)
		ticket, ok := byPeer[peer]
		if !ok {
			ticket = &entity.Ticket{
				TicketID: string(entity.DirectKey(peer)),
				BuyerID:  s.localUserID,
				SellerID: peer,
				Status:   entity.TicketStatusOpen,
				IsDirect: true,
			}
			byPeer[peer] = ticket
			order = append(order, peer)
		}

		ticket.MessageCount++
		if msg.UnreadFor(s.localUserID) {
			ticket.UnreadCount++
		}
		if ticket.LastMessage == nil || msg.SentAt.After(ticket.LastMessage.SentAt) {
			ticket.LastMessage = msg.Summary()
		}
	}

	tickets := make([]entity.Ticket, 0, len(order))
	for _, peer := range order {
		tickets = append(tickets, *byPeer[peer])
	}
	return tickets
}

// synthesizeTicket builds a ticket for a conversation the backend has not
// listed yet, seeded from its first observed message.
func (s *ConversationStore) synthesizeTicket(msg entity.Message) entity.Ticket {
	peer := msg.Peer(s.localUserID)
	ticket := entity.Ticket{
		TicketID:     string(entity.KeyFor(msg, s.localUserID)),
		OrderID:      msg.OrderID,
		BuyerID:      s.localUserID,
		SellerID:     peer,
		Status:       entity.TicketStatusOpen,
		LastMessage:  msg.Summary(),
		MessageCount: 1,
		IsDirect:     msg.OrderID == 0,
	}
	if msg.UnreadFor(s.localUserID) {
		ticket.UnreadCount = 1
	}
	return ticket
}

// dedupTickets keeps the first ticket per conversation key. Order tickets and
// direct tickets can never collide; this guards against backend duplicates.
func dedupTickets(tickets []entity.Ticket, localUserID string) []entity.Ticket {
	seen := make(map[entity.ConversationKey]bool, len(tickets))
	result := tickets[:0:0]
	for _, ticket := range tickets {
		key := entity.KeyForTicket(ticket, localUserID)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, ticket)
	}
	return result
}

func (s *ConversationStore) ticketIndexLocked(key entity.ConversationKey) int {
	for i := range s.tickets {
		if entity.KeyForTicket(s.tickets[i], s.localUserID) == key {
			return i
		}
	}
	return -1
}

// Tickets returns a snapshot of the unified ticket list.
func (s *ConversationStore) Tickets() []entity.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Ticket, len(s.tickets))
	copy(out, s.tickets)
	for i := range out {
		if s.tickets[i].LastMessage != nil {
			last := *s.tickets[i].LastMessage
			out[i].LastMessage = &last
		}
	}
	return out
}

// Messages returns a snapshot of one conversation's ordered message list.
func (s *ConversationStore) Messages(key entity.ConversationKey) []entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]entity.Message(nil), s.messagesByKey[key]...)
}

// TotalUnread sums unread counts across all tickets, for the badge.
func (s *ConversationStore) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, ticket := range s.tickets {
		total += ticket.UnreadCount
	}
	return total
}

func (s *ConversationStore) LocalUserID() string {
	return s.localUserID
}

func (s *ConversationStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Error returns the last surfaced failure, or "" when the previous operation
// succeeded. Views render it passively; no retry loop.
func (s *ConversationStore) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// OnChange registers a callback fired after every state mutation and returns
// its cancel function.
func (s *ConversationStore) OnChange(fn func()) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *ConversationStore) notify() {
	s.mu.Lock()
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (s *ConversationStore) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
	s.notify()
}

func (s *ConversationStore) setError(err error) {
	logger.Error("store: %v", err)
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
	s.notify()
}

func backendMessage(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
