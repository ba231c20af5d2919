package event

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

var (
	_ Eventer    = (*MessageV1Event)(nil)
	_ Exportable = (*MessageV1Event)(nil)
)

// MessageV1Event wraps a message push.
//
// [STRATEGY]
// It distinguishes between:
//   - [BUSINESS_PEERS] (Message.SenderID/ReceiverID): Logical participants (The "Who").
//   - [ROUTING_TARGET] (UserID): The physical recipient of this event instance (The "Where").
type MessageV1Event struct {
	wireCache
	ID      uuid.UUID
	Kind    Kind
	Message *model.Message
	UserID  uuid.UUID
}

// NewMessageV1Event binds a message snapshot to the user whose socket should receive it.
func NewMessageV1Event(kind Kind, msg *model.Message, userID uuid.UUID) *MessageV1Event {
	return &MessageV1Event{
		ID:      uuid.New(),
		Kind:    kind,
		Message: msg.Clone(), // detach from the caller's record
		UserID:  userID,
	}
}

func (e *MessageV1Event) GetID() string              { return e.ID.String() }
func (e *MessageV1Event) GetPayload() any            { return e.Message }
func (e *MessageV1Event) GetUserID() uuid.UUID       { return e.UserID }
func (e *MessageV1Event) GetOccurredAt() int64       { return e.Message.UpdatedAt }
func (e *MessageV1Event) GetKind() Kind              { return e.Kind }
func (e *MessageV1Event) GetPriority() EventPriority { return PriorityHigh }

// GetRoutingKey generates the bus topic.
// [PATTERN] im_presence.v1.message.{created|edited|deleted}
func (e *MessageV1Event) GetRoutingKey() string {
	switch e.Kind {
	case NewMessage:
		return "im_presence.v1.message.created"
	case MessageEdited:
		return "im_presence.v1.message.edited"
	case MessageDeleted:
		return "im_presence.v1.message.deleted"
	default:
		return fmt.Sprintf("im_presence.v1.message.%s", e.Kind)
	}
}
