package event

import (
	"time"

	"github.com/google/uuid"
)

var _ Exportable = (*DomainEvent)(nil)

// Topics of state transitions exported to the bus.
const (
	TopicMessageStatus       = "message.status"
	TopicConnectionRequested = "connection.requested"
	TopicConnectionAccepted  = "connection.accepted"
)

// DomainEvent records a durable state transition for external collaborators
// (push notifications, analytics). It never travels over a client socket.
type DomainEvent struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Topic      string    `json:"topic"`
	ActorID    uuid.UUID `json:"actor_id"`
	Payload    any       `json:"payload"`
	OccurredAt int64     `json:"occurred_at"`
}

// NewDomainEvent creates a fresh event ready for publishing.
func NewDomainEvent(topic string, actorID uuid.UUID, payload any) *DomainEvent {
	return &DomainEvent{
		ID:         uuid.NewString(),
		Source:     "im-presence-service",
		Topic:      topic,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UnixMilli(),
	}
}

func (e *DomainEvent) GetRoutingKey() string {
	if e.Topic == "" {
		return ""
	}
	return "im_presence.v1." + e.Topic
}

// StatusChange is the payload of TopicMessageStatus.
type StatusChange struct {
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Status     string    `json:"status"`
	Count      int64     `json:"count"`
}

// ConnectionChange is the payload of the connection topics.
type ConnectionChange struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	SenderID     uuid.UUID `json:"sender_id"`
	ReceiverID   uuid.UUID `json:"receiver_id"`
	Status       string    `json:"status"`
	AutoAccepted bool      `json:"auto_accepted,omitempty"`
}
