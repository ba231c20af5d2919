package model

import "github.com/google/uuid"

// ConnectedPayload is sent to the client once its connection is registered.
type ConnectedPayload struct {
	Ok            bool
	ConnectionID  string
	ServerVersion string
}

// DisconnectedPayload is the notification sent before the server closes a socket.
type DisconnectedPayload struct {
	Reason string
	Code   string // Optional: "SHUTDOWN", "SUPERSEDED", "TIMEOUT"
}

// OnlineUsersPayload is the full presence snapshot.
type OnlineUsersPayload struct {
	UserIDs []uuid.UUID
}

// TypingPayload is forwarded verbatim between two peers.
type TypingPayload struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
}

// ReadReceiptPayload tells a sender that the reader opened the conversation.
type ReadReceiptPayload struct {
	SenderID uuid.UUID
	ReaderID uuid.UUID
	Count    int64
}

// DeliveredPayload is the single reconciliation signal of a bulk sent->delivered sweep.
type DeliveredPayload struct {
	ReceiverID uuid.UUID
	Count      int64
}

// ContactRequestPayload notifies a receiver of an incoming request.
type ContactRequestPayload struct {
	ConnectionID uuid.UUID
	SenderID     uuid.UUID
	SenderName   string
	Message      string
}

// ContactAcceptedPayload carries the public profile of the other party.
type ContactAcceptedPayload struct {
	ConnectionID uuid.UUID
	Contact      Profile
	Message      string
}

// ErrorPayload answers a failed inbound event on the originating connection.
type ErrorPayload struct {
	Event   string
	Code    string
	Message string
}
