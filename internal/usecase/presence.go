package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gigspace/internal/infrastructure/channel"
	"gigspace/pkg/logger"
)

// PresenceTracker reports online/offline state for observed users, combining
// an initial checkOnline pull with ongoing userOnline/userOffline pushes.
// State is ephemeral: nothing is persisted and everything is rebuilt on
// reconnect. Presence is best-effort; failures degrade to offline instead of
// surfacing errors.
type PresenceTracker struct {
	channel EventChannel

	mu     sync.Mutex
	states map[string]bool
}

func NewPresenceTracker(ch EventChannel) *PresenceTracker {
	return &PresenceTracker{
		channel: ch,
		states:  make(map[string]bool),
	}
}

// Online reports the last state observed for a user. Users never seen by any
// subscription read as offline.
func (p *PresenceTracker) Online(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[userID]
}

func (p *PresenceTracker) record(userID string, online bool) {
	p.mu.Lock()
	p.states[userID] = online
	p.mu.Unlock()
}

// Subscribe watches one user id. onChange fires with the initial answer and
// on every transition until the returned cancel function runs. Subscribers
// are independent: many list rows may watch the same id, each with its own
// callback. A pushed transition outranks the initial checkOnline answer when
// the two race; the stale answer is discarded.
func (p *PresenceTracker) Subscribe(userID string, onChange func(online bool)) (cancel func()) {
	var mu sync.Mutex
	cancelled := false
	pushed := false

	emit := func(online, initial bool) {
		mu.Lock()
		if initial && pushed {
			mu.Unlock()
			return
		}
		if !initial {
			pushed = true
		}
		done := cancelled
		mu.Unlock()
		if !done {
			p.record(userID, online)
			onChange(online)
		}
	}

	filtered := func(online bool) channel.Handler {
		return func(data json.RawMessage) {
			var payload channel.PresencePayload
			if err := json.Unmarshal(data, &payload); err != nil {
				return
			}
			if payload.UserID == userID {
				emit(online, false)
			}
		}
	}

	cancelOnline := p.channel.On(channel.EventUserOnline, filtered(true))
	cancelOffline := p.channel.On(channel.EventUserOffline, filtered(false))

	// Initial pull. A failed or malformed answer reads as offline.
	go func() {
		ctx, cancelCtx := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelCtx()

		ack, err := p.channel.EmitWithAck(ctx, channel.ActionCheckOnline, channel.CheckOnlinePayload{UserID: userID})
		if err != nil {
			logger.Debug("presence: checkOnline for %s failed: %v", userID, err)
			emit(false, true)
			return
		}

		online := false
		if ack.Success {
			if err := json.Unmarshal(ack.Data, &online); err != nil {
				online = false
			}
		}
		emit(online, true)
	}()

	return func() {
		mu.Lock()
		cancelled = true
		mu.Unlock()
		cancelOnline()
		cancelOffline()
	}
}
