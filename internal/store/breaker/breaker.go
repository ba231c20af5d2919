// Package breaker wraps a store.Store with a circuit breaker. When the
// backing store keeps failing, calls are rejected fast with
// model.ErrStoreUnavailable instead of piling up on a dead connection pool.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/store"
)

var _ store.Store = (*Store)(nil)

type Settings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type Store struct {
	next store.Store
	cb   *gobreaker.CircuitBreaker
}

func New(next store.Store, s Settings, logger *slog.Logger) *Store {
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("STORE_BREAKER_STATE_CHANGED",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Store{next: next, cb: cb}
}

// State exposes the current breaker state for health reporting.
func (s *Store) State() gobreaker.State { return s.cb.State() }

// countsAsFailure separates infrastructure trouble from domain outcomes.
// A missing record or a lost uniqueness race says nothing about store health.
func countsAsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInvalidState),
		errors.Is(err, model.ErrForbidden),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

func call[T any](s *Store, fn func() (T, error)) (T, error) {
	var zero T
	res, err := s.cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%s: %w: %w", s.cb.Name(), model.ErrStoreUnavailable, err)
	}
	v, _ := res.(T)
	return v, err
}

func exec(s *Store, fn func() error) error {
	_, err := call(s, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// --- messages ---

func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	return exec(s, func() error { return s.next.CreateMessage(ctx, msg) })
}

func (s *Store) GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return call(s, func() (*model.Message, error) { return s.next.GetMessage(ctx, id) })
}

func (s *Store) FindMessages(ctx context.Context, filter store.MessageFilter) ([]*model.Message, error) {
	return call(s, func() ([]*model.Message, error) { return s.next.FindMessages(ctx, filter) })
}

func (s *Store) FindConversation(ctx context.Context, a, b uuid.UUID) ([]*model.Message, error) {
	return call(s, func() ([]*model.Message, error) { return s.next.FindConversation(ctx, a, b) })
}

func (s *Store) AdvanceStatus(ctx context.Context, filter store.MessageFilter, to model.MessageStatus, now int64) (int64, error) {
	return call(s, func() (int64, error) { return s.next.AdvanceStatus(ctx, filter, to, now) })
}

func (s *Store) UpdateContent(ctx context.Context, filter store.MessageFilter, patch model.MessagePatch) (*model.Message, error) {
	return call(s, func() (*model.Message, error) { return s.next.UpdateContent(ctx, filter, patch) })
}

// --- connections ---

func (s *Store) CreateConnection(ctx context.Context, conn *model.Connection) error {
	return exec(s, func() error { return s.next.CreateConnection(ctx, conn) })
}

func (s *Store) FindConnection(ctx context.Context, filter store.ConnectionFilter) (*model.Connection, error) {
	return call(s, func() (*model.Connection, error) { return s.next.FindConnection(ctx, filter) })
}

func (s *Store) FindConnections(ctx context.Context, filter store.ConnectionFilter) ([]*model.Connection, error) {
	return call(s, func() ([]*model.Connection, error) { return s.next.FindConnections(ctx, filter) })
}

func (s *Store) TransitionConnection(ctx context.Context, filter store.ConnectionFilter, to model.ConnectionStatus, now int64) (*model.Connection, error) {
	return call(s, func() (*model.Connection, error) { return s.next.TransitionConnection(ctx, filter, to, now) })
}

// --- users ---

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return call(s, func() (*model.User, error) { return s.next.GetUser(ctx, id) })
}

func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	return call(s, func() ([]*model.User, error) { return s.next.GetUsers(ctx, ids) })
}

func (s *Store) ListUsers(ctx context.Context, except uuid.UUID) ([]*model.User, error) {
	return call(s, func() ([]*model.User, error) { return s.next.ListUsers(ctx, except) })
}
