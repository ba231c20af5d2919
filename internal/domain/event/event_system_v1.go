package event

import (
	"time"

	"github.com/google/uuid"
)

var _ Eventer = (*SystemEvent)(nil)

// SystemEvent carries every realtime notification that is not a message
// record: presence snapshots, typing, receipts, contact updates, errors.
type SystemEvent struct {
	wireCache

	id    string
	to    uuid.UUID
	kind  Kind
	prio  EventPriority
	at    int64
	value any
}

// NewSystemEvent addresses payload to the socket of to. uuid.Nil is used for
// events shared by many recipients, such as presence snapshots.
func NewSystemEvent(to uuid.UUID, kind Kind, prio EventPriority, payload any) *SystemEvent {
	return &SystemEvent{
		id:    uuid.NewString(),
		to:    to,
		kind:  kind,
		prio:  prio,
		at:    time.Now().UnixMilli(),
		value: payload,
	}
}

func (e *SystemEvent) GetID() string              { return e.id }
func (e *SystemEvent) GetKind() Kind              { return e.kind }
func (e *SystemEvent) GetUserID() uuid.UUID       { return e.to }
func (e *SystemEvent) GetPriority() EventPriority { return e.prio }
func (e *SystemEvent) GetOccurredAt() int64       { return e.at }
func (e *SystemEvent) GetPayload() any            { return e.value }
