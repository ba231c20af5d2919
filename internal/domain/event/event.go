package event

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind is the wire-level event name. Clients subscribe by these exact strings.
type Kind string

const (
	Connected              Kind = "connected"                // [SYSTEM]
	Disconnected           Kind = "disconnected"             // [SYSTEM]
	Failure                Kind = "error"                    // [SYSTEM]
	OnlineUsers            Kind = "getOnlineUsers"           // [PRESENCE]
	Typing                 Kind = "typing"                   // [EPHEMERAL]
	StopTyping             Kind = "stopTyping"               // [EPHEMERAL]
	NewMessage             Kind = "newMessage"               // [BUSINESS]
	MessageEdited          Kind = "message-edited"           // [BUSINESS]
	MessageDeleted         Kind = "message-deleted"          // [BUSINESS]
	MessagesRead           Kind = "messages-read"            // [BUSINESS]
	MessagesDelivered      Kind = "messages-delivered"       // [BUSINESS]
	ContactRequestReceived Kind = "contact-request-received" // [BUSINESS]
	ContactAccepted        Kind = "contact-accepted"         // [BUSINESS]
)

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetUserID() uuid.UUID
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() []byte
	SetCached([]byte)
}

// Exportable defines an event that should be re-published to the message bus.
type Exportable interface {
	// We return the key only if the event is ready to be exported.
	// If it returns an empty string, the publisher will skip it.
	GetRoutingKey() string
}

// wireCache holds the encoded frame so a snapshot broadcast to N sockets is
// marshaled once. Write pumps run concurrently, hence the atomic pointer.
type wireCache struct {
	p atomic.Pointer[[]byte]
}

func (c *wireCache) GetCached() []byte {
	if b := c.p.Load(); b != nil {
		return *b
	}
	return nil
}

func (c *wireCache) SetCached(b []byte) { c.p.Store(&b) }
