// Package memory is an in-process Store. Every method holds one mutex for its
// whole read-modify-write, which gives the same per-record atomicity the
// document store provides with conditional updates.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu          sync.RWMutex
	messages    map[uuid.UUID]*model.Message
	order       []uuid.UUID // insertion order of messages
	connections map[uuid.UUID]*model.Connection
	pairs       map[model.PairKey]uuid.UUID
	users       map[uuid.UUID]*model.User
}

func New() *Store {
	return &Store{
		messages:    make(map[uuid.UUID]*model.Message),
		connections: make(map[uuid.UUID]*model.Connection),
		pairs:       make(map[model.PairKey]uuid.UUID),
		users:       make(map[uuid.UUID]*model.User),
	}
}

// PutUser seeds an identity. The real identity collaborator owns users; this
// exists for tests and the memory driver.
func (s *Store) PutUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
}

// --- messages ---

func (s *Store) CreateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; ok {
		return fmt.Errorf("message %s: %w", msg.ID, store.ErrDuplicate)
	}
	s.messages[msg.ID] = msg.Clone()
	s.order = append(s.order, msg.ID)
	return nil
}

func (s *Store) GetMessage(_ context.Context, id uuid.UUID) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, model.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *Store) FindMessages(_ context.Context, filter store.MessageFilter) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*model.Message
	for _, id := range s.order {
		if m := s.messages[id]; filter.Matches(m) {
			res = append(res, m.Clone())
		}
	}
	return res, nil
}

func (s *Store) FindConversation(_ context.Context, a, b uuid.UUID) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*model.Message
	for _, id := range s.order {
		m := s.messages[id]
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			res = append(res, m.Clone())
		}
	}
	slices.SortStableFunc(res, func(x, y *model.Message) int {
		return cmp.Compare(x.CreatedAt, y.CreatedAt)
	})
	return res, nil
}

func (s *Store) AdvanceStatus(_ context.Context, filter store.MessageFilter, to model.MessageStatus, now int64) (int64, error) {
	from := store.AdvanceableFrom(filter, to)
	if len(from) == 0 {
		return 0, nil
	}
	filter.Statuses = from

	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if filter.Matches(m) {
			m.Status = to
			m.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateContent(_ context.Context, filter store.MessageFilter, patch model.MessagePatch) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if m := s.messages[id]; filter.Matches(m) {
			patch.Apply(m)
			return m.Clone(), nil
		}
	}
	return nil, fmt.Errorf("message: %w", model.ErrNotFound)
}

// --- connections ---

func (s *Store) CreateConnection(_ context.Context, conn *model.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pairs[conn.Pair]; ok {
		return fmt.Errorf("connection %s: %w", conn.Pair, store.ErrDuplicate)
	}
	s.connections[conn.ID] = conn.Clone()
	s.pairs[conn.Pair] = conn.ID
	return nil
}

func (s *Store) FindConnection(_ context.Context, filter store.ConnectionFilter) (*model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.findLocked(filter); c != nil {
		return c.Clone(), nil
	}
	return nil, fmt.Errorf("connection: %w", model.ErrNotFound)
}

func (s *Store) FindConnections(_ context.Context, filter store.ConnectionFilter) ([]*model.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*model.Connection
	for _, c := range s.connections {
		if filter.Matches(c) {
			res = append(res, c.Clone())
		}
	}
	slices.SortFunc(res, func(x, y *model.Connection) int {
		return cmp.Compare(x.CreatedAt, y.CreatedAt)
	})
	return res, nil
}

func (s *Store) TransitionConnection(_ context.Context, filter store.ConnectionFilter, to model.ConnectionStatus, now int64) (*model.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findLocked(filter)
	if c == nil {
		return nil, fmt.Errorf("connection: %w", model.ErrNotFound)
	}
	c.Status = to
	c.UpdatedAt = now
	return c.Clone(), nil
}

func (s *Store) findLocked(filter store.ConnectionFilter) *model.Connection {
	// Pair lookups hit the index.
	if filter.Pair != "" {
		id, ok := s.pairs[filter.Pair]
		if !ok {
			return nil
		}
		if c := s.connections[id]; filter.Matches(c) {
			return c
		}
		return nil
	}
	for _, c := range s.connections {
		if filter.Matches(c) {
			return c
		}
	}
	return nil
}

// --- users ---

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUsers(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (s *Store) ListUsers(_ context.Context, except uuid.UUID) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*model.User, 0, len(s.users))
	for id, u := range s.users {
		if id == except {
			continue
		}
		cp := *u
		res = append(res, &cp)
	}
	slices.SortFunc(res, func(x, y *model.User) int {
		return cmp.Compare(x.FullName, y.FullName)
	})
	return res, nil
}
