package mongostore

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Collection names.
const (
	MessagesCollection    = "messages"
	ConnectionsCollection = "connections"
	UsersCollection       = "users"
)

// Field names shared by documents and filters.
const (
	FieldID         = "_id"
	FieldSenderID   = "sender_id"
	FieldReceiverID = "receiver_id"
	FieldText       = "text"
	FieldImage      = "image"
	FieldStatus     = "status"
	FieldDeleted    = "deleted"
	FieldPairKey    = "pair_key"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
	FieldFullName   = "full_name"
	FieldPassword   = "password"
)

type messageDoc struct {
	ID         string `bson:"_id"`
	SenderID   string `bson:"sender_id"`
	ReceiverID string `bson:"receiver_id"`
	Text       string `bson:"text"`
	Image      string `bson:"image,omitempty"`
	Status     string `bson:"status"`
	Deleted    bool   `bson:"deleted"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

func fromMessage(m *model.Message) *messageDoc {
	return &messageDoc{
		ID:         m.ID.String(),
		SenderID:   m.SenderID.String(),
		ReceiverID: m.ReceiverID.String(),
		Text:       m.Text,
		Image:      m.Attachment,
		Status:     m.Status.String(),
		Deleted:    m.Deleted,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (d *messageDoc) toModel() (*model.Message, error) {
	ids, err := parseIDs(d.ID, d.SenderID, d.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("message document %s: %w", d.ID, err)
	}
	status, err := model.ParseMessageStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("message document %s: %w", d.ID, err)
	}
	return &model.Message{
		ID:         ids[0],
		SenderID:   ids[1],
		ReceiverID: ids[2],
		Text:       d.Text,
		Attachment: d.Image,
		Status:     status,
		Deleted:    d.Deleted,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

type connectionDoc struct {
	ID         string `bson:"_id"`
	SenderID   string `bson:"sender_id"`
	ReceiverID string `bson:"receiver_id"`
	PairKey    string `bson:"pair_key"`
	Status     string `bson:"status"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

func fromConnection(c *model.Connection) *connectionDoc {
	return &connectionDoc{
		ID:         c.ID.String(),
		SenderID:   c.SenderID.String(),
		ReceiverID: c.ReceiverID.String(),
		PairKey:    string(c.Pair),
		Status:     c.Status.String(),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func (d *connectionDoc) toModel() (*model.Connection, error) {
	ids, err := parseIDs(d.ID, d.SenderID, d.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("connection document %s: %w", d.ID, err)
	}
	status, err := model.ParseConnectionStatus(d.Status)
	if err != nil {
		return nil, fmt.Errorf("connection document %s: %w", d.ID, err)
	}
	pair := model.PairKey(d.PairKey)
	if pair == "" {
		// Records written before pair keys existed.
		pair = model.NewPairKey(ids[1], ids[2])
	}
	return &model.Connection{
		ID:         ids[0],
		SenderID:   ids[1],
		ReceiverID: ids[2],
		Pair:       pair,
		Status:     status,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

// userDoc is read with the password projected away; the field is declared so
// that a missing projection would be noticed in review, not silently decoded.
type userDoc struct {
	ID         string `bson:"_id"`
	FullName   string `bson:"full_name"`
	Email      string `bson:"email"`
	ProfilePic string `bson:"profile_pic"`
	Password   string `bson:"password,omitempty"`
	CreatedAt  int64  `bson:"created_at"`
}

func (d *userDoc) toModel() (*model.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("user document %s: %w", d.ID, model.ErrValidation)
	}
	return &model.User{
		ID:         id,
		FullName:   d.FullName,
		Email:      d.Email,
		ProfilePic: d.ProfilePic,
		CreatedAt:  d.CreatedAt,
	}, nil
}

func parseIDs(raw ...string) ([]uuid.UUID, error) {
	res := make([]uuid.UUID, len(raw))
	for i, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("malformed id %q: %w", r, model.ErrValidation)
		}
		res[i] = id
	}
	return res, nil
}
