package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

type notification struct {
	to   uuid.UUID
	kind event.Kind
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingNotifier) Notify(userID uuid.UUID, kind event.Kind, _ any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{to: userID, kind: kind})
	return true
}

func (r *recordingNotifier) NotifyEvent(ev event.Eventer) bool {
	return r.Notify(ev.GetUserID(), ev.GetKind(), ev.GetPayload())
}

func (r *recordingNotifier) count(kind event.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

func TestTyping_ForwardsEveryKeystrokeAndExpiresOnce(t *testing.T) {
	rec := &recordingNotifier{}
	tr := NewTypingTracker(rec, 50*time.Millisecond, discard)
	t.Cleanup(tr.Close)
	a, b := uuid.New(), uuid.New()

	for range 5 {
		require.NoError(t, tr.Typing(a, b))
	}
	assert.Equal(t, 5, rec.count(event.Typing))

	require.Eventually(t, func() bool { return rec.count(event.StopTyping) == 1 }, time.Second, 5*time.Millisecond)

	// No stacked timers fire later.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, rec.count(event.StopTyping))
}

func TestTyping_KeystrokesPostponeExpiry(t *testing.T) {
	rec := &recordingNotifier{}
	tr := NewTypingTracker(rec, 80*time.Millisecond, discard)
	t.Cleanup(tr.Close)
	a, b := uuid.New(), uuid.New()

	for range 4 {
		require.NoError(t, tr.Typing(a, b))
		time.Sleep(30 * time.Millisecond)
	}
	assert.Zero(t, rec.count(event.StopTyping))

	require.Eventually(t, func() bool { return rec.count(event.StopTyping) == 1 }, time.Second, 5*time.Millisecond)
}

func TestTyping_ExplicitStopCancelsTimer(t *testing.T) {
	rec := &recordingNotifier{}
	tr := NewTypingTracker(rec, 30*time.Millisecond, discard)
	t.Cleanup(tr.Close)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, tr.Typing(a, b))
	require.NoError(t, tr.StopTyping(a, b))
	assert.Equal(t, 1, rec.count(event.StopTyping))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, rec.count(event.StopTyping))
}

func TestTyping_ClearUserStopsOnlyTheirIndicators(t *testing.T) {
	rec := &recordingNotifier{}
	tr := NewTypingTracker(rec, time.Minute, discard)
	t.Cleanup(tr.Close)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, tr.Typing(a, b))
	require.NoError(t, tr.Typing(a, c))
	require.NoError(t, tr.Typing(b, a))

	tr.ClearUser(a)
	assert.Equal(t, 2, rec.count(event.StopTyping))

	rec.mu.Lock()
	var targets []uuid.UUID
	for _, s := range rec.sent {
		if s.kind == event.StopTyping {
			targets = append(targets, s.to)
		}
	}
	rec.mu.Unlock()
	assert.ElementsMatch(t, []uuid.UUID{b, c}, targets)
}

func TestTyping_RequiresBothIDs(t *testing.T) {
	tr := NewTypingTracker(&recordingNotifier{}, time.Second, discard)
	t.Cleanup(tr.Close)

	assert.ErrorIs(t, tr.Typing(uuid.Nil, uuid.New()), model.ErrValidation)
	assert.ErrorIs(t, tr.StopTyping(uuid.New(), uuid.Nil), model.ErrValidation)
}
