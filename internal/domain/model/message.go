package model

import (
	"fmt"

	"github.com/google/uuid"
)

// MessageStatus is the delivery lifecycle stage of a message as seen by its sender.
type MessageStatus int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	StatusSent MessageStatus = iota + 1
	StatusDelivered
	StatusRead
)

var statusNames = map[MessageStatus]string{
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusRead:      "read",
}

func (s MessageStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MessageStatus(%d)", int16(s))
}

// ParseMessageStatus is the inverse of String.
func ParseMessageStatus(v string) (MessageStatus, error) {
	for s, name := range statusNames {
		if name == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown message status %q: %w", v, ErrValidation)
}

// Valid reports whether s is one of the declared lifecycle stages.
func (s MessageStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanAdvanceTo enforces [MONOTONIC_LIFECYCLE]: a status only ever moves forward.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next > s
}

// Predecessors returns every status that may legally transition into s.
func (s MessageStatus) Predecessors() []MessageStatus {
	var res []MessageStatus
	for st := StatusSent; st < s; st++ {
		res = append(res, st)
	}
	return res
}

// Mutable reports whether the sender may still edit or delete the message.
// Once the recipient has read it the content is frozen.
func (s MessageStatus) Mutable() bool {
	return s == StatusSent || s == StatusDelivered
}

// InitialStatus picks the creation-time status from receiver presence.
func InitialStatus(receiverOnline bool) MessageStatus {
	if receiverOnline {
		return StatusDelivered
	}
	return StatusSent
}

// [MESSAGE] CORE ENTITY REPRESENTING A DIRECT MESSAGE BETWEEN TWO USERS
type Message struct {
	ID         uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Text       string
	// Attachment is a reference to externally hosted content (image URL).
	Attachment string
	Status     MessageStatus
	Deleted    bool
	CreatedAt  int64
	UpdatedAt  int64
}

// NewMessage builds a message ready to be persisted.
func NewMessage(senderID, receiverID uuid.UUID, text, attachment string, status MessageStatus, now int64) *Message {
	return &Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Attachment: attachment,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a detached copy, used by stores that hand out records.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// MessagePatch describes a content mutation (edit or soft delete).
type MessagePatch struct {
	Text            string
	ClearAttachment bool
	MarkDeleted     bool
	UpdatedAt       int64
}

// Apply mutates m in place according to the patch.
func (p MessagePatch) Apply(m *Message) {
	m.Text = p.Text
	if p.ClearAttachment {
		m.Attachment = ""
	}
	if p.MarkDeleted {
		m.Deleted = true
	}
	m.UpdatedAt = p.UpdatedAt
}
