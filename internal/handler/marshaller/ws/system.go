package wsmarshaller

type WSConnected struct {
	Ok            bool   `json:"ok"`
	ConnectionID  string `json:"connectionId"`
	ServerVersion string `json:"serverVersion,omitempty"`
}

type WSDisconnected struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

type WSTyping struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type WSReadReceipt struct {
	SenderID string `json:"senderId"`
	ReaderID string `json:"readerId"`
	Count    int64  `json:"count"`
}

type WSDelivered struct {
	ReceiverID string `json:"receiverId"`
	Count      int64  `json:"count"`
}

type WSContactRequest struct {
	ConnectionID string `json:"connectionId"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName"`
	Message      string `json:"message"`
}

type WSContactAccepted struct {
	ConnectionID string     `json:"connectionId"`
	Contact      *WSProfile `json:"contact"`
	Message      string     `json:"message"`
}

type WSError struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
