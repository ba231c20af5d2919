// Package store declares the durable-store capability the engine consumes.
// Implementations live in sub-packages; every transition is expressed as one
// conditional update so concurrent events cannot lose each other's writes.
package store

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// ErrDuplicate is returned by Create operations that hit a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

// MessageFilter narrows message queries. Zero fields do not constrain.
type MessageFilter struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Statuses   []model.MessageStatus
	// Live excludes soft-deleted (tombstoned) messages.
	Live bool
}

// Matches is the reference semantics every driver must honour.
func (f MessageFilter) Matches(m *model.Message) bool {
	if f.ID != uuid.Nil && m.ID != f.ID {
		return false
	}
	if f.SenderID != uuid.Nil && m.SenderID != f.SenderID {
		return false
	}
	if f.ReceiverID != uuid.Nil && m.ReceiverID != f.ReceiverID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, m.Status) {
		return false
	}
	if f.Live && m.Deleted {
		return false
	}
	return true
}

// MessageStore is the message capability.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*model.Message, error)
	FindMessages(ctx context.Context, filter MessageFilter) ([]*model.Message, error)
	// FindConversation returns messages exchanged between a and b in both
	// directions, oldest first.
	FindConversation(ctx context.Context, a, b uuid.UUID) ([]*model.Message, error)
	// AdvanceStatus moves every matching message whose current status precedes
	// `to` into `to`, atomically per record. Messages already at or past `to`
	// are never touched. Returns the number of records changed.
	AdvanceStatus(ctx context.Context, filter MessageFilter, to model.MessageStatus, now int64) (int64, error)
	// UpdateContent applies patch to the single message matching filter and
	// returns the updated record, or model.ErrNotFound if nothing matched.
	UpdateContent(ctx context.Context, filter MessageFilter, patch model.MessagePatch) (*model.Message, error)
}

// ConnectionFilter narrows connection queries. Zero fields do not constrain.
type ConnectionFilter struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Pair       model.PairKey
	// Involving matches records where the user is either side.
	Involving uuid.UUID
	Status    model.ConnectionStatus
}

func (f ConnectionFilter) Matches(c *model.Connection) bool {
	if f.SenderID != uuid.Nil && c.SenderID != f.SenderID {
		return false
	}
	if f.ReceiverID != uuid.Nil && c.ReceiverID != f.ReceiverID {
		return false
	}
	if f.Pair != "" && c.Pair != f.Pair {
		return false
	}
	if f.Involving != uuid.Nil && !c.Involves(f.Involving) {
		return false
	}
	if f.Status != 0 && c.Status != f.Status {
		return false
	}
	return true
}

// ConnectionStore is the contact-relationship capability.
type ConnectionStore interface {
	// CreateConnection inserts a new record; ErrDuplicate if the pair already has one.
	CreateConnection(ctx context.Context, conn *model.Connection) error
	FindConnection(ctx context.Context, filter ConnectionFilter) (*model.Connection, error)
	FindConnections(ctx context.Context, filter ConnectionFilter) ([]*model.Connection, error)
	// TransitionConnection sets the status of one matching record and returns it
	// after the update, or model.ErrNotFound.
	TransitionConnection(ctx context.Context, filter ConnectionFilter, to model.ConnectionStatus, now int64) (*model.Connection, error)
}

// UserStore is the read-only view of the identity collaborator.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
	// ListUsers returns everyone except the given user.
	ListUsers(ctx context.Context, except uuid.UUID) ([]*model.User, error)
}

// Store bundles the three capabilities.
type Store interface {
	MessageStore
	ConnectionStore
	UserStore
}

// AdvanceableFrom intersects the caller's status constraint with the statuses
// that may legally move to `to`. Drivers use it to build their conditional update.
func AdvanceableFrom(filter MessageFilter, to model.MessageStatus) []model.MessageStatus {
	allowed := to.Predecessors()
	if len(filter.Statuses) == 0 {
		return allowed
	}
	var res []model.MessageStatus
	for _, s := range filter.Statuses {
		if slices.Contains(allowed, s) {
			res = append(res, s)
		}
	}
	return res
}
