package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// observe logs one state-machine operation. Expected domain outcomes
// (not found, forbidden, invalid state) are logged at info, infrastructure
// failures at error.
func observe(logger *slog.Logger, op string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration_ms", time.Since(start).Milliseconds())

	switch code := model.Code(err); code {
	case "":
		logger.Debug("OPERATION_COMPLETED", attrs...)
	case model.CodeUnavailable, model.CodeInternal:
		logger.Error("OPERATION_FAILED", append(attrs, "code", code, "err", err)...)
	default:
		logger.Info("OPERATION_REJECTED", append(attrs, "code", code, "err", err)...)
	}
}

// DeliveryMiddleware implements [DECORATOR_PATTERN] to add observability
// to the delivery state machine without touching business logic.
type DeliveryMiddleware struct {
	Next   Deliverer
	Logger *slog.Logger
}

func NewDeliveryMiddleware(next Deliverer, logger *slog.Logger) Deliverer {
	return &DeliveryMiddleware{Next: next, Logger: logger}
}

func (m *DeliveryMiddleware) Send(ctx context.Context, senderID, receiverID uuid.UUID, in SendInput) (*model.Message, error) {
	start := time.Now()
	msg, err := m.Next.Send(ctx, senderID, receiverID, in)
	attrs := []any{"sender_id", senderID, "receiver_id", receiverID}
	if msg != nil {
		attrs = append(attrs, "message_id", msg.ID, "status", msg.Status.String())
	}
	observe(m.Logger, "send", start, err, attrs...)
	return msg, err
}

func (m *DeliveryMiddleware) History(ctx context.Context, userID, peerID uuid.UUID) ([]*model.Message, error) {
	start := time.Now()
	msgs, err := m.Next.History(ctx, userID, peerID)
	observe(m.Logger, "history", start, err, "user_id", userID, "peer_id", peerID, "count", len(msgs))
	return msgs, err
}

func (m *DeliveryMiddleware) MarkDelivered(ctx context.Context, receiverID uuid.UUID) (int64, error) {
	start := time.Now()
	n, err := m.Next.MarkDelivered(ctx, receiverID)
	observe(m.Logger, "mark_delivered", start, err, "receiver_id", receiverID, "count", n)
	return n, err
}

func (m *DeliveryMiddleware) MarkRead(ctx context.Context, readerID, senderID uuid.UUID) (int64, error) {
	start := time.Now()
	n, err := m.Next.MarkRead(ctx, readerID, senderID)
	observe(m.Logger, "mark_read", start, err, "reader_id", readerID, "sender_id", senderID, "count", n)
	return n, err
}

func (m *DeliveryMiddleware) Edit(ctx context.Context, actorID, messageID uuid.UUID, text string) (*model.Message, error) {
	start := time.Now()
	msg, err := m.Next.Edit(ctx, actorID, messageID, text)
	observe(m.Logger, "edit", start, err, "actor_id", actorID, "message_id", messageID)
	return msg, err
}

func (m *DeliveryMiddleware) Delete(ctx context.Context, actorID, messageID uuid.UUID) (*model.Message, error) {
	start := time.Now()
	msg, err := m.Next.Delete(ctx, actorID, messageID)
	observe(m.Logger, "delete", start, err, "actor_id", actorID, "message_id", messageID)
	return msg, err
}

// ContactMiddleware is the same decorator for the connection state machine.
type ContactMiddleware struct {
	Next   Contacter
	Logger *slog.Logger
}

func NewContactMiddleware(next Contacter, logger *slog.Logger) Contacter {
	return &ContactMiddleware{Next: next, Logger: logger}
}

func (m *ContactMiddleware) Request(ctx context.Context, senderID, receiverID uuid.UUID) (*RequestResult, error) {
	start := time.Now()
	res, err := m.Next.Request(ctx, senderID, receiverID)
	attrs := []any{"sender_id", senderID, "receiver_id", receiverID}
	if res != nil {
		attrs = append(attrs, "connection_id", res.Connection.ID, "auto_accepted", res.AutoAccepted)
	}
	observe(m.Logger, "request_connection", start, err, attrs...)
	return res, err
}

func (m *ContactMiddleware) Accept(ctx context.Context, accepterID, requesterID uuid.UUID) (*model.Connection, error) {
	start := time.Now()
	conn, err := m.Next.Accept(ctx, accepterID, requesterID)
	observe(m.Logger, "accept_connection", start, err, "accepter_id", accepterID, "requester_id", requesterID)
	return conn, err
}

func (m *ContactMiddleware) Accepted(ctx context.Context, userID uuid.UUID) ([]model.Profile, error) {
	start := time.Now()
	res, err := m.Next.Accepted(ctx, userID)
	observe(m.Logger, "accepted_connections", start, err, "user_id", userID, "count", len(res))
	return res, err
}

func (m *ContactMiddleware) PendingIncoming(ctx context.Context, userID uuid.UUID) ([]model.PendingRequest, error) {
	start := time.Now()
	res, err := m.Next.PendingIncoming(ctx, userID)
	observe(m.Logger, "pending_requests", start, err, "user_id", userID, "count", len(res))
	return res, err
}
