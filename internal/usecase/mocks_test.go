package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"gigspace/internal/domain/entity"
	"gigspace/internal/infrastructure/channel"
)

type emitted struct {
	event   string
	payload interface{}
}

// fakeChannel implements EventChannel in-memory: it records every emitted
// action, answers acks from a configured table, and lets tests push events to
// the registered handlers.
type fakeChannel struct {
	mu        sync.Mutex
	handlers  map[string]map[int]channel.Handler
	nextID    int
	emitted   []emitted
	acks      map[string]channel.Ack
	ackErr    error
	ackGate   chan struct{}
	joins     []string
	dropHooks map[int]func()
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers:  make(map[string]map[int]channel.Handler),
		acks:      make(map[string]channel.Ack),
		dropHooks: make(map[int]func()),
	}
}

func (f *fakeChannel) On(event string, handler channel.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers[event] == nil {
		f.handlers[event] = make(map[int]channel.Handler)
	}
	id := f.nextID
	f.nextID++
	f.handlers[event][id] = handler

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[event], id)
	}
}

func (f *fakeChannel) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) EmitWithAck(ctx context.Context, event string, payload interface{}) (channel.Ack, error) {
	f.mu.Lock()
	f.emitted = append(f.emitted, emitted{event: event, payload: payload})
	ack, ok := f.acks[event]
	err := f.ackErr
	gate := f.ackGate
	f.mu.Unlock()

	// An ack gate lets tests hold the answer back until they release it.
	if gate != nil {
		<-gate
	}

	if err != nil {
		return channel.Ack{}, err
	}
	if !ok {
		return channel.Ack{Success: true}, nil
	}
	return ack, nil
}

func (f *fakeChannel) OnDisconnect(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	f.dropHooks[id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.dropHooks, id)
	}
}

// fireDisconnect invokes every registered disconnect hook, as a dropped
// connection would.
func (f *fakeChannel) fireDisconnect() {
	f.mu.Lock()
	hooks := make([]func(), 0, len(f.dropHooks))
	for _, fn := range f.dropHooks {
		hooks = append(hooks, fn)
	}
	f.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (f *fakeChannel) JoinUserRoom(userID string) error {
	return f.recordJoin("user:" + userID)
}

func (f *fakeChannel) JoinOrderRoom(orderID int64) error {
	return f.recordJoin(string(entity.OrderKey(orderID)))
}

func (f *fakeChannel) JoinDirectRoom(localUserID, peerID string) error {
	return f.recordJoin("direct:" + entity.DirectRoom(localUserID, peerID))
}

func (f *fakeChannel) recordJoin(room string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, room)
	return nil
}

// push delivers an event to every registered handler, as the channel would.
func (f *fakeChannel) push(event string, payload interface{}) {
	data, _ := json.Marshal(payload)

	f.mu.Lock()
	handlers := make([]channel.Handler, 0, len(f.handlers[event]))
	for _, h := range f.handlers[event] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

func (f *fakeChannel) emittedEvents(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []emitted
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeChannel) handlerCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

// fakeMessageRepo implements repository.MessageRepository from fixtures.
type fakeMessageRepo struct {
	mu            sync.Mutex
	tickets       []entity.Ticket
	direct        []entity.Message
	orderMessages map[int64][]entity.Message
	ticketsErr    error
	directErr     error
	fetchCalls    int
}

func (r *fakeMessageRepo) FetchOrderMessages(ctx context.Context, orderID int64) ([]entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Message(nil), r.orderMessages[orderID]...), nil
}

func (r *fakeMessageRepo) FetchTickets(ctx context.Context) ([]entity.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls++
	if r.ticketsErr != nil {
		return nil, r.ticketsErr
	}
	return append([]entity.Ticket(nil), r.tickets...), nil
}

func (r *fakeMessageRepo) FetchDirectMessages(ctx context.Context, receiverID string) ([]entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.directErr != nil {
		return nil, r.directErr
	}
	if receiverID == "" {
		return append([]entity.Message(nil), r.direct...), nil
	}

	var out []entity.Message
	for _, msg := range r.direct {
		if msg.SenderID == receiverID || msg.ReceiverID == receiverID {
			out = append(out, msg)
		}
	}
	return out, nil
}
