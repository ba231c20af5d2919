package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConnectionStatus is the lifecycle stage of a contact relationship.
// The implicit "none" stage is the absence of a record.
type ConnectionStatus int16

const (
	ConnectionPending ConnectionStatus = iota + 1
	ConnectionAccepted
)

func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionPending:
		return "pending"
	case ConnectionAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("ConnectionStatus(%d)", int16(s))
	}
}

// ParseConnectionStatus is the inverse of String.
func ParseConnectionStatus(v string) (ConnectionStatus, error) {
	switch v {
	case "pending":
		return ConnectionPending, nil
	case "accepted":
		return ConnectionAccepted, nil
	default:
		return 0, fmt.Errorf("unknown connection status %q: %w", v, ErrValidation)
	}
}

// PairKey is the normalized, direction-free identity of a user pair.
// Both directions of a relationship map to the same key.
type PairKey string

// NewPairKey orders the two identities so that NewPairKey(a, b) == NewPairKey(b, a).
func NewPairKey(a, b uuid.UUID) PairKey {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return PairKey(as + ":" + bs)
}

// Members returns the two identities in normalized order.
func (k PairKey) Members() (uuid.UUID, uuid.UUID, error) {
	left, right, ok := strings.Cut(string(k), ":")
	if !ok {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed pair key %q: %w", k, ErrValidation)
	}
	a, err := uuid.Parse(left)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("pair key member: %w", ErrValidation)
	}
	b, err := uuid.Parse(right)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("pair key member: %w", ErrValidation)
	}
	return a, b, nil
}

// Connection is a contact relationship. SenderID/ReceiverID keep the initiating
// direction for audit; Pair is what uniqueness is enforced on.
type Connection struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Pair       PairKey
	Status     ConnectionStatus
	CreatedAt  int64
	UpdatedAt  int64
}

// NewConnection creates a pending request from sender to receiver.
func NewConnection(senderID, receiverID uuid.UUID, now int64) *Connection {
	return &Connection{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Pair:       NewPairKey(senderID, receiverID),
		Status:     ConnectionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Other resolves the party on the opposite side of userID.
func (c *Connection) Other(userID uuid.UUID) uuid.UUID {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// Involves reports whether userID is one of the two parties.
func (c *Connection) Involves(userID uuid.UUID) bool {
	return c.SenderID == userID || c.ReceiverID == userID
}

func (c *Connection) Clone() *Connection {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// PendingRequest is an incoming contact request resolved to its sender's profile.
type PendingRequest struct {
	ConnectionID uuid.UUID
	From         Profile
	CreatedAt    int64
}
