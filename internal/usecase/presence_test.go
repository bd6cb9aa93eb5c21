package usecase

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigspace/internal/infrastructure/channel"
	"gigspace/pkg/errors"
)

type presenceRecorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *presenceRecorder) record(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, online)
}

func (r *presenceRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

func (r *presenceRecorder) waitForStates(t *testing.T, n int) []bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		states := r.snapshot()
		if len(states) >= n {
			return states
		}
		require.True(t, time.Now().Before(deadline), "expected %d presence states, got %v", n, states)
		time.Sleep(5 * time.Millisecond)
	}
}

func onlineAck(online bool) channel.Ack {
	data, _ := json.Marshal(online)
	return channel.Ack{Success: true, Data: data}
}

func TestSubscribeReportsInitialState(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(true)

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	defer cancel()

	states := rec.waitForStates(t, 1)
	assert.Equal(t, []bool{true}, states)

	checks := ch.emittedEvents(channel.ActionCheckOnline)
	require.Len(t, checks, 1)
	assert.Equal(t, "bob", checks[0].payload.(channel.CheckOnlinePayload).UserID)
}

func TestSubscribeTracksTransitions(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(false)

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	defer cancel()
	rec.waitForStates(t, 1)

	ch.push(channel.EventUserOnline, channel.PresencePayload{UserID: "bob"})
	ch.push(channel.EventUserOffline, channel.PresencePayload{UserID: "bob"})

	states := rec.waitForStates(t, 3)
	assert.Equal(t, []bool{false, true, false}, states)
}

func TestSubscribeFiltersOtherUsers(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(false)

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	defer cancel()
	rec.waitForStates(t, 1)

	ch.push(channel.EventUserOnline, channel.PresencePayload{UserID: "carol"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []bool{false}, rec.snapshot())
}

func TestCheckOnlineFailureReadsAsOffline(t *testing.T) {
	ch := newFakeChannel()
	ch.ackErr = errors.Transport("channel down", nil)

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	defer cancel()

	states := rec.waitForStates(t, 1)
	assert.Equal(t, []bool{false}, states)
}

func TestIndependentSubscribersEachFire(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(false)

	tracker := NewPresenceTracker(ch)
	first := &presenceRecorder{}
	second := &presenceRecorder{}

	cancelFirst := tracker.Subscribe("bob", first.record)
	defer cancelFirst()
	cancelSecond := tracker.Subscribe("bob", second.record)
	defer cancelSecond()

	first.waitForStates(t, 1)
	second.waitForStates(t, 1)

	ch.push(channel.EventUserOnline, channel.PresencePayload{UserID: "bob"})

	assert.Equal(t, []bool{false, true}, first.waitForStates(t, 2))
	assert.Equal(t, []bool{false, true}, second.waitForStates(t, 2))
}

func TestPushOutranksStaleInitialAnswer(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(false)
	gate := make(chan struct{})
	ch.ackGate = gate

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	defer cancel()

	// The checkOnline answer is still held back when the transition lands.
	waitFor := time.Now().Add(2 * time.Second)
	for len(ch.emittedEvents(channel.ActionCheckOnline)) == 0 {
		require.True(t, time.Now().Before(waitFor), "checkOnline never emitted")
		time.Sleep(5 * time.Millisecond)
	}
	ch.push(channel.EventUserOnline, channel.PresencePayload{UserID: "bob"})
	rec.waitForStates(t, 1)

	close(gate)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, []bool{true}, rec.snapshot())
	assert.True(t, tracker.Online("bob"))
}

func TestOnlineReflectsLastObservedState(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(true)

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	defer cancel()
	rec.waitForStates(t, 1)
	assert.True(t, tracker.Online("bob"))

	ch.push(channel.EventUserOffline, channel.PresencePayload{UserID: "bob"})
	rec.waitForStates(t, 2)

	assert.False(t, tracker.Online("bob"))
	assert.False(t, tracker.Online("never-seen"))
}

func TestCancelRemovesHandlersAndSilencesCallbacks(t *testing.T) {
	ch := newFakeChannel()
	ch.acks[channel.ActionCheckOnline] = onlineAck(false)

	tracker := NewPresenceTracker(ch)
	rec := &presenceRecorder{}

	cancel := tracker.Subscribe("bob", rec.record)
	rec.waitForStates(t, 1)

	cancel()
	assert.Equal(t, 0, ch.handlerCount(channel.EventUserOnline))
	assert.Equal(t, 0, ch.handlerCount(channel.EventUserOffline))

	ch.push(channel.EventUserOnline, channel.PresencePayload{UserID: "bob"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []bool{false}, rec.snapshot())
}
