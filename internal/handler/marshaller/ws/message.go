package wsmarshaller

import (
	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

type WSMessage struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
	Image      string `json:"image,omitempty"`
	Status     string `json:"status"`
	Deleted    bool   `json:"deleted,omitempty"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

func mapMessage(m *model.Message) *WSMessage {
	return &WSMessage{
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

// MapMessages is shared with the request/response surface.
func MapMessages(msgs []*model.Message) []*WSMessage {
	res := make([]*WSMessage, len(msgs))
	for i, m := range msgs {
		res[i] = mapMessage(m)
	}
	return res
}

func MapMessage(m *model.Message) *WSMessage { return mapMessage(m) }

type WSProfile struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

func MapProfile(p model.Profile) *WSProfile {
	return &WSProfile{
		ID:         p.ID.String(),
		FullName:   p.FullName,
		Email:      p.Email,
		ProfilePic: p.ProfilePic,
	}
}

func MapProfiles(ps []model.Profile) []*WSProfile {
	res := make([]*WSProfile, len(ps))
	for i, p := range ps {
		res[i] = MapProfile(p)
	}
	return res
}

type WSPendingRequest struct {
	ConnectionID string     `json:"connectionId"`
	From         *WSProfile `json:"from"`
	CreatedAt    int64      `json:"createdAt"`
}

func MapPendingRequests(rs []model.PendingRequest) []*WSPendingRequest {
	res := make([]*WSPendingRequest, len(rs))
	for i, r := range rs {
		res[i] = &WSPendingRequest{
			ConnectionID: r.ConnectionID.String(),
			From:         MapProfile(r.From),
			CreatedAt:    r.CreatedAt,
		}
	}
	return res
}

type WSConnection struct {
	ID         string `json:"_id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

func MapConnection(c *model.Connection) *WSConnection {
	return &WSConnection{
		ID:         c.ID.String(),
		SenderID:   c.SenderID.String(),
		ReceiverID: c.ReceiverID.String(),
		Status:     c.Status.String(),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func mapOnlineUsers(p *model.OnlineUsersPayload) []string {
	return idStrings(p.UserIDs)
}

func idStrings(ids []uuid.UUID) []string {
	res := make([]string, len(ids))
	for i, id := range ids {
		res[i] = id.String()
	}
	return res
}
