package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Typer forwards typing signals between two peers. Nothing is persisted.
type Typer interface {
	Typing(senderID, receiverID uuid.UUID) error
	StopTyping(senderID, receiverID uuid.UUID) error
	ClearUser(userID uuid.UUID)
}

type typingKey struct {
	sender   uuid.UUID
	receiver uuid.UUID
}

type typingEntry struct {
	timer *time.Timer
}

// TypingTracker emits an implicit stopTyping after a quiet period. Each
// keystroke resets the pending timer of its (sender, receiver) pair instead
// of scheduling another one.
type TypingTracker struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[typingKey]*typingEntry
}

func NewTypingTracker(notifier Notifier, timeout time.Duration, logger *slog.Logger) *TypingTracker {
	return &TypingTracker{
		notifier: notifier,
		timeout:  timeout,
		logger:   logger,
		pending:  make(map[typingKey]*typingEntry),
	}
}

func (t *TypingTracker) Typing(senderID, receiverID uuid.UUID) error {
	key, err := newTypingKey(senderID, receiverID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.arm(key)
	t.mu.Unlock()

	t.notifier.Notify(receiverID, event.Typing, &model.TypingPayload{SenderID: senderID, ReceiverID: receiverID})
	return nil
}

func (t *TypingTracker) StopTyping(senderID, receiverID uuid.UUID) error {
	key, err := newTypingKey(senderID, receiverID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if e, ok := t.pending[key]; ok {
		e.timer.Stop()
		delete(t.pending, key)
	}
	t.mu.Unlock()

	t.notifier.Notify(receiverID, event.StopTyping, &model.TypingPayload{SenderID: senderID, ReceiverID: receiverID})
	return nil
}

// ClearUser drops every indicator the user was showing, e.g. on disconnect.
func (t *TypingTracker) ClearUser(userID uuid.UUID) {
	var stopped []typingKey

	t.mu.Lock()
	for key, e := range t.pending {
		if key.sender != userID {
			continue
		}
		e.timer.Stop()
		delete(t.pending, key)
		stopped = append(stopped, key)
	}
	t.mu.Unlock()

	for _, key := range stopped {
		t.notifier.Notify(key.receiver, event.StopTyping, &model.TypingPayload{SenderID: key.sender, ReceiverID: key.receiver})
	}
}

// Close cancels all pending timers without notifying anyone.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.pending {
		e.timer.Stop()
		delete(t.pending, key)
	}
}

// arm resets the pair's timer, or starts one if none is pending. Must hold mu.
func (t *TypingTracker) arm(key typingKey) {
	if e, ok := t.pending[key]; ok && e.timer.Stop() {
		e.timer.Reset(t.timeout)
		return
	}
	// Either nothing was pending or the old timer already fired; its callback
	// will see that the entry was replaced and do nothing.
	e := &typingEntry{}
	e.timer = time.AfterFunc(t.timeout, func() { t.expire(key, e) })
	t.pending[key] = e
}

func (t *TypingTracker) expire(key typingKey, e *typingEntry) {
	t.mu.Lock()
	if t.pending[key] != e {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	t.mu.Unlock()

	t.logger.Debug("TYPING_EXPIRED", "sender_id", key.sender, "receiver_id", key.receiver)
	t.notifier.Notify(key.receiver, event.StopTyping, &model.TypingPayload{SenderID: key.sender, ReceiverID: key.receiver})
}

func newTypingKey(senderID, receiverID uuid.UUID) (typingKey, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return typingKey{}, fmt.Errorf("typing: sender and receiver are required: %w", model.ErrValidation)
	}
	return typingKey{sender: senderID, receiver: receiverID}, nil
}
