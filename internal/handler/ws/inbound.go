package ws

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Inbound event names (client -> server).
const (
	EventTyping         = "typing"
	EventStopTyping     = "stopTyping"
	EventChatOpened     = "chat-opened"
	EventContactRequest = "contact-request"
	EventContactAccept  = "contact-accept"
	EventUserOnline     = "user-online"
)

// InboundFrame is the envelope of every client -> server frame.
type InboundFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type TypingRequest struct {
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
}

func (r *TypingRequest) Validate() error {
	return requireIDs("senderId", r.SenderID, "receiverId", r.ReceiverID)
}

type ChatOpenedRequest struct {
	ReaderID uuid.UUID `json:"readerId"`
	SenderID uuid.UUID `json:"senderId"`
}

func (r *ChatOpenedRequest) Validate() error {
	return requireIDs("readerId", r.ReaderID, "senderId", r.SenderID)
}

type ContactRequest struct {
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
	// SenderName is informational; the server resolves the display name itself.
	SenderName string `json:"senderName,omitempty"`
}

func (r *ContactRequest) Validate() error {
	return requireIDs("senderId", r.SenderID, "receiverId", r.ReceiverID)
}

// ContactAcceptRequest names the original request direction: SenderID asked,
// ReceiverID accepts.
type ContactAcceptRequest struct {
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
}

func (r *ContactAcceptRequest) Validate() error {
	return requireIDs("senderId", r.SenderID, "receiverId", r.ReceiverID)
}

type UserOnlineRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (r *UserOnlineRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return fmt.Errorf("userId is required: %w", model.ErrValidation)
	}
	return nil
}

func requireIDs(nameA string, a uuid.UUID, nameB string, b uuid.UUID) error {
	switch {
	case a == uuid.Nil:
		return fmt.Errorf("%s is required: %w", nameA, model.ErrValidation)
	case b == uuid.Nil:
		return fmt.Errorf("%s is required: %w", nameB, model.ErrValidation)
	}
	return nil
}

// actAs rejects frames that claim to act for someone other than the socket owner.
func actAs(s *Session, claimed uuid.UUID) error {
	if claimed != s.UserID {
		return fmt.Errorf("acting identity %s does not own this connection: %w", claimed, model.ErrForbidden)
	}
	return nil
}
