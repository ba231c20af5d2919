package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/store"
)

// Deliverer is the Delivery State Machine: sent -> delivered -> read.
type Deliverer interface {
	Send(ctx context.Context, senderID, receiverID uuid.UUID, in SendInput) (*model.Message, error)
	History(ctx context.Context, userID, peerID uuid.UUID) ([]*model.Message, error)
	// MarkDelivered sweeps every message waiting for receiverID from sent to
	// delivered (the user came online).
	MarkDelivered(ctx context.Context, receiverID uuid.UUID) (int64, error)
	// MarkRead sweeps every unread senderID -> readerID message to read (the
	// reader opened the conversation).
	MarkRead(ctx context.Context, readerID, senderID uuid.UUID) (int64, error)
	Edit(ctx context.Context, actorID, messageID uuid.UUID, text string) (*model.Message, error)
	Delete(ctx context.Context, actorID, messageID uuid.UUID) (*model.Message, error)
}

type SendInput struct {
	Text       string
	Attachment string
}

type DeliveryOptions struct {
	// RequireContact gates sending on an accepted connection between the pair.
	RequireContact bool
	// Tombstone replaces the text of deleted messages.
	Tombstone string
}

type DeliveryService struct {
	store    store.Store
	hub      registry.Hubber
	notifier Notifier
	exporter Exporter
	logger   *slog.Logger
	opts     DeliveryOptions
	now      func() int64
}

func NewDeliveryService(st store.Store, hub registry.Hubber, notifier Notifier, exporter Exporter, logger *slog.Logger, opts DeliveryOptions) *DeliveryService {
	if opts.Tombstone == "" {
		opts.Tombstone = "This message was deleted"
	}
	return &DeliveryService{
		store:    st,
		hub:      hub,
		notifier: notifier,
		exporter: exporter,
		logger:   logger,
		opts:     opts,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *DeliveryService) Send(ctx context.Context, senderID, receiverID uuid.UUID, in SendInput) (*model.Message, error) {
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, fmt.Errorf("send: sender and receiver are required: %w", model.ErrValidation)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("send: cannot message yourself: %w", model.ErrValidation)
	}
	if strings.TrimSpace(in.Text) == "" && in.Attachment == "" {
		return nil, fmt.Errorf("send: text or attachment is required: %w", model.ErrValidation)
	}

	if s.opts.RequireContact {
		_, err := s.store.FindConnection(ctx, store.ConnectionFilter{
			Pair:   model.NewPairKey(senderID, receiverID),
			Status: model.ConnectionAccepted,
		})
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("send: %w", model.ErrNotConnected)
		}
		if err != nil {
			return nil, fmt.Errorf("send: check connection: %w", err)
		}
	}

	// [PRESENCE_DRIVEN] delivered iff the receiver is live at creation time
	status := model.InitialStatus(s.hub.IsConnected(receiverID))
	msg := model.NewMessage(senderID, receiverID, in.Text, in.Attachment, status, s.now())

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	ev := event.NewMessageV1Event(event.NewMessage, msg, receiverID)
	s.notifier.NotifyEvent(ev)
	exportBestEffort(ctx, s.exporter, s.logger, ev)

	return msg, nil
}

func (s *DeliveryService) History(ctx context.Context, userID, peerID uuid.UUID) ([]*model.Message, error) {
	if userID == uuid.Nil || peerID == uuid.Nil {
		return nil, fmt.Errorf("history: both users are required: %w", model.ErrValidation)
	}
	msgs, err := s.store.FindConversation(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return msgs, nil
}

func (s *DeliveryService) MarkDelivered(ctx context.Context, receiverID uuid.UUID) (int64, error) {
	if receiverID == uuid.Nil {
		return 0, fmt.Errorf("mark delivered: user id is required: %w", model.ErrValidation)
	}

	waiting, err := s.store.FindMessages(ctx, store.MessageFilter{
		ReceiverID: receiverID,
		Statuses:   []model.MessageStatus{model.StatusSent},
	})
	if err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}

	// One conditional update per sender so each sender gets one
	// reconciliation signal with its own count.
	var senders []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, m := range waiting {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		senders = append(senders, m.SenderID)
	}

	var total int64
	now := s.now()
	for _, senderID := range senders {
		n, err := s.store.AdvanceStatus(ctx, store.MessageFilter{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Statuses:   []model.MessageStatus{model.StatusSent},
		}, model.StatusDelivered, now)
		if err != nil {
			return total, fmt.Errorf("mark delivered: %w", err)
		}
		if n == 0 {
			continue
		}
		total += n

		s.notifier.Notify(senderID, event.MessagesDelivered, &model.DeliveredPayload{ReceiverID: receiverID, Count: n})
		exportBestEffort(ctx, s.exporter, s.logger, event.NewDomainEvent(event.TopicMessageStatus, receiverID, &event.StatusChange{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     model.StatusDelivered.String(),
			Count:      n,
		}))
	}

	if total > 0 {
		s.logger.Debug("DELIVERED_SWEEP_APPLIED", "receiver_id", receiverID, "count", total, "senders", len(senders))
	}
	return total, nil
}

func (s *DeliveryService) MarkRead(ctx context.Context, readerID, senderID uuid.UUID) (int64, error) {
	if readerID == uuid.Nil || senderID == uuid.Nil {
		return 0, fmt.Errorf("mark read: reader and sender are required: %w", model.ErrValidation)
	}

	// AdvanceStatus never touches messages already read.
	n, err := s.store.AdvanceStatus(ctx, store.MessageFilter{
		SenderID:   senderID,
		ReceiverID: readerID,
	}, model.StatusRead, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	// [READ_RECEIPT] exactly one per chat-opened, even when nothing changed
	s.notifier.Notify(senderID, event.MessagesRead, &model.ReadReceiptPayload{
		SenderID: senderID,
		ReaderID: readerID,
		Count:    n,
	})

	if n > 0 {
		s.logger.Debug("READ_SWEEP_APPLIED", "reader_id", readerID, "sender_id", senderID, "count", n)
		exportBestEffort(ctx, s.exporter, s.logger, event.NewDomainEvent(event.TopicMessageStatus, readerID, &event.StatusChange{
			SenderID:   senderID,
			ReceiverID: readerID,
			Status:     model.StatusRead.String(),
			Count:      n,
		}))
	}
	return n, nil
}

func (s *DeliveryService) Edit(ctx context.Context, actorID, messageID uuid.UUID, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("edit: text is required: %w", model.ErrValidation)
	}
	return s.mutate(ctx, "edit", event.MessageEdited, actorID, messageID, model.MessagePatch{Text: text})
}

func (s *DeliveryService) Delete(ctx context.Context, actorID, messageID uuid.UUID) (*model.Message, error) {
	return s.mutate(ctx, "delete", event.MessageDeleted, actorID, messageID, model.MessagePatch{
		Text:            s.opts.Tombstone,
		ClearAttachment: true,
		MarkDeleted:     true,
	})
}

// mutate applies a content patch gated by ownership and status. The update is
// conditional on the record still being mutable and not deleted, so a read
// sweep or a delete that lands between the check and the write wins.
func (s *DeliveryService) mutate(ctx context.Context, op string, kind event.Kind, actorID, messageID uuid.UUID, patch model.MessagePatch) (*model.Message, error) {
	if actorID == uuid.Nil || messageID == uuid.Nil {
		return nil, fmt.Errorf("%s: actor and message are required: %w", op, model.ErrValidation)
	}

	current, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkMutable(current, actorID); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, messageID, err)
	}

	patch.UpdatedAt = s.now()
	updated, err := s.store.UpdateContent(ctx, store.MessageFilter{
		ID:       messageID,
		SenderID: actorID,
		Statuses: []model.MessageStatus{model.StatusSent, model.StatusDelivered},
		Live:     true,
	}, patch)
	if errors.Is(err, model.ErrNotFound) {
		// The record exists and is ours: a read sweep or a delete moved it.
		return nil, fmt.Errorf("%s %s: %w", op, messageID, s.lostRace(ctx, messageID))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ev := event.NewMessageV1Event(kind, updated, updated.ReceiverID)
	s.notifier.NotifyEvent(ev)
	exportBestEffort(ctx, s.exporter, s.logger, ev)

	return updated, nil
}

// lostRace tells which concurrent write beat a conditional content update.
func (s *DeliveryService) lostRace(ctx context.Context, messageID uuid.UUID) error {
	if m, err := s.store.GetMessage(ctx, messageID); err == nil && m.Deleted {
		return model.ErrDeleted
	}
	return model.ErrImmutable
}

func checkMutable(m *model.Message, actorID uuid.UUID) error {
	switch {
	case m.SenderID != actorID:
		return fmt.Errorf("only the sender may change a message: %w", model.ErrForbidden)
	case m.Deleted:
		return model.ErrDeleted
	case !m.Status.Mutable():
		return model.ErrImmutable
	}
	return nil
}
