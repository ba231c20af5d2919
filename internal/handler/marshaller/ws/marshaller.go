package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// WSEvent is the generic wrapper of every server -> client frame.
type WSEvent struct {
	Event   string `json:"event"` // e.g. "newMessage", "getOnlineUsers"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent prepares a frame for WebSocket transmission. The
// encoded bytes are cached on the event so a snapshot shared by many
// connections is encoded once.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached := ev.GetCached(); cached != nil {
		return cached, nil
	}

	payload, err := mapPayload(ev.GetPayload())
	if err != nil {
		return nil, fmt.Errorf("ws marshal %s: %w", ev.GetKind(), err)
	}

	data, err := json.Marshal(&WSEvent{
		Event:   string(ev.GetKind()),
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}

	ev.SetCached(data)
	return data, nil
}

func mapPayload(p any) (any, error) {
	switch v := p.(type) {
	case *model.Message:
		return mapMessage(v), nil
	case *model.ConnectedPayload:
		return &WSConnected{Ok: v.Ok, ConnectionID: v.ConnectionID, ServerVersion: v.ServerVersion}, nil
	case *model.DisconnectedPayload:
		return &WSDisconnected{Reason: v.Reason, Code: v.Code}, nil
	case *model.OnlineUsersPayload:
		return mapOnlineUsers(v), nil
	case *model.TypingPayload:
		return &WSTyping{SenderID: v.SenderID.String(), ReceiverID: v.ReceiverID.String()}, nil
	case *model.ReadReceiptPayload:
		return &WSReadReceipt{SenderID: v.SenderID.String(), ReaderID: v.ReaderID.String(), Count: v.Count}, nil
	case *model.DeliveredPayload:
		return &WSDelivered{ReceiverID: v.ReceiverID.String(), Count: v.Count}, nil
	case *model.ContactRequestPayload:
		return &WSContactRequest{
			ConnectionID: v.ConnectionID.String(),
			SenderID:     v.SenderID.String(),
			SenderName:   v.SenderName,
			Message:      v.Message,
		}, nil
	case *model.ContactAcceptedPayload:
		return &WSContactAccepted{
			ConnectionID: v.ConnectionID.String(),
			Contact:      MapProfile(v.Contact),
			Message:      v.Message,
		}, nil
	case *model.ErrorPayload:
		return &WSError{Event: v.Event, Code: v.Code, Message: v.Message}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", p)
	}
}
