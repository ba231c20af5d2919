package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/store"
)

// Contacter is the Connection Request State Machine: none -> pending -> accepted.
type Contacter interface {
	// Request asks receiverID to connect. A pending request in the opposite
	// direction is auto-accepted instead of creating a second record.
	Request(ctx context.Context, senderID, receiverID uuid.UUID) (*RequestResult, error)
	// Accept resolves the pending record of the pair, whichever side created it.
	// Accepting an already accepted pair succeeds and re-notifies.
	Accept(ctx context.Context, accepterID, requesterID uuid.UUID) (*model.Connection, error)
	Accepted(ctx context.Context, userID uuid.UUID) ([]model.Profile, error)
	PendingIncoming(ctx context.Context, userID uuid.UUID) ([]model.PendingRequest, error)
}

type RequestResult struct {
	Connection   *model.Connection
	AutoAccepted bool
}

type ContactService struct {
	store    store.ConnectionStore
	profiles ProfileResolver
	notifier Notifier
	exporter Exporter
	logger   *slog.Logger
	now      func() int64
}

func NewContactService(st store.ConnectionStore, profiles ProfileResolver, notifier Notifier, exporter Exporter, logger *slog.Logger) *ContactService {
	return &ContactService{
		store:    st,
		profiles: profiles,
		notifier: notifier,
		exporter: exporter,
		logger:   logger,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

func (s *ContactService) Request(ctx context.Context, senderID, receiverID uuid.UUID) (*RequestResult, error) {
	if err := validatePair(senderID, receiverID); err != nil {
		return nil, fmt.Errorf("request connection: %w", err)
	}

	// A lost uniqueness race means the other side created the record between
	// our read and our insert. The second pass sees it and auto-accepts.
	for attempt := 0; ; attempt++ {
		res, err := s.request(ctx, senderID, receiverID)
		if errors.Is(err, store.ErrDuplicate) && attempt == 0 {
			s.logger.Debug("CONNECTION_CREATE_RACE", "sender_id", senderID, "receiver_id", receiverID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("request connection: %w", err)
		}
		return res, nil
	}
}

func (s *ContactService) request(ctx context.Context, senderID, receiverID uuid.UUID) (*RequestResult, error) {
	pair := model.NewPairKey(senderID, receiverID)

	existing, err := s.store.FindConnection(ctx, store.ConnectionFilter{Pair: pair})
	switch {
	case errors.Is(err, model.ErrNotFound):
		return s.create(ctx, senderID, receiverID)
	case err != nil:
		return nil, err
	}

	switch {
	case existing.Status == model.ConnectionAccepted && existing.SenderID == senderID:
		return nil, model.ErrAlreadyRequested
	case existing.Status == model.ConnectionAccepted:
		return nil, model.ErrAlreadyConnected
	case existing.SenderID == senderID:
		return nil, model.ErrAlreadyRequested
	}

	// [AUTO_ACCEPT] reverse pending request: mutual interest resolves the pair.
	conn, err := s.store.TransitionConnection(ctx, store.ConnectionFilter{
		Pair:   pair,
		Status: model.ConnectionPending,
	}, model.ConnectionAccepted, s.now())
	if errors.Is(err, model.ErrNotFound) {
		// Accepted concurrently by the other side.
		return nil, model.ErrAlreadyConnected
	}
	if err != nil {
		return nil, err
	}

	s.notifyAccepted(ctx, conn)
	exportBestEffort(ctx, s.exporter, s.logger, connectionEvent(event.TopicConnectionAccepted, senderID, conn, true))

	return &RequestResult{Connection: conn, AutoAccepted: true}, nil
}

func (s *ContactService) create(ctx context.Context, senderID, receiverID uuid.UUID) (*RequestResult, error) {
	conn := model.NewConnection(senderID, receiverID, s.now())
	if err := s.store.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}

	sender, err := s.profiles.Resolve(ctx, senderID)
	if err != nil {
		// The request exists; the notification degrades to the bare identity.
		s.logger.Warn("PROFILE_RESOLUTION_FAILED", "user_id", senderID, "err", err)
	}

	s.notifier.Notify(receiverID, event.ContactRequestReceived, &model.ContactRequestPayload{
		ConnectionID: conn.ID,
		SenderID:     senderID,
		SenderName:   sender.FullName,
		Message:      requestMessage(sender),
	})
	exportBestEffort(ctx, s.exporter, s.logger, connectionEvent(event.TopicConnectionRequested, senderID, conn, false))

	return &RequestResult{Connection: conn}, nil
}

func (s *ContactService) Accept(ctx context.Context, accepterID, requesterID uuid.UUID) (*model.Connection, error) {
	if err := validatePair(accepterID, requesterID); err != nil {
		return nil, fmt.Errorf("accept connection: %w", err)
	}
	pair := model.NewPairKey(accepterID, requesterID)

	// Only the addressee of a pending request may approve it.
	conn, err := s.store.TransitionConnection(ctx, store.ConnectionFilter{
		SenderID:   requesterID,
		ReceiverID: accepterID,
		Status:     model.ConnectionPending,
	}, model.ConnectionAccepted, s.now())

	fresh := err == nil
	if errors.Is(err, model.ErrNotFound) {
		// [IDEMPOTENT] duplicate accept events re-notify instead of failing
		conn, err = s.store.FindConnection(ctx, store.ConnectionFilter{
			Pair:   pair,
			Status: model.ConnectionAccepted,
		})
	}
	if errors.Is(err, model.ErrNotFound) {
		if _, perr := s.store.FindConnection(ctx, store.ConnectionFilter{
			SenderID:   accepterID,
			ReceiverID: requesterID,
			Status:     model.ConnectionPending,
		}); perr == nil {
			err = model.ErrNotAddressee
		}
	}
	if err != nil {
		return nil, fmt.Errorf("accept connection: %w", err)
	}

	s.notifyAccepted(ctx, conn)
	if fresh {
		exportBestEffort(ctx, s.exporter, s.logger, connectionEvent(event.TopicConnectionAccepted, accepterID, conn, false))
	}
	return conn, nil
}

// notifyAccepted tells each side about the other party's public profile.
func (s *ContactService) notifyAccepted(ctx context.Context, conn *model.Connection) {
	sender, receiver, err := s.profiles.ResolvePair(ctx, conn.SenderID, conn.ReceiverID)
	if err != nil {
		s.logger.Warn("PROFILE_RESOLUTION_FAILED", "connection_id", conn.ID, "err", err)
	}

	s.notifier.Notify(conn.SenderID, event.ContactAccepted, &model.ContactAcceptedPayload{
		ConnectionID: conn.ID,
		Contact:      receiver,
		Message:      acceptedMessage(receiver),
	})
	s.notifier.Notify(conn.ReceiverID, event.ContactAccepted, &model.ContactAcceptedPayload{
		ConnectionID: conn.ID,
		Contact:      sender,
		Message:      acceptedMessage(sender),
	})
}

func (s *ContactService) Accepted(ctx context.Context, userID uuid.UUID) ([]model.Profile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("accepted connections: user id is required: %w", model.ErrValidation)
	}
	conns, err := s.store.FindConnections(ctx, store.ConnectionFilter{
		Involving: userID,
		Status:    model.ConnectionAccepted,
	})
	if err != nil {
		return nil, fmt.Errorf("accepted connections: %w", err)
	}

	others := make([]uuid.UUID, len(conns))
	for i, c := range conns {
		others[i] = c.Other(userID)
	}
	return s.profiles.ResolveMany(ctx, others)
}

func (s *ContactService) PendingIncoming(ctx context.Context, userID uuid.UUID) ([]model.PendingRequest, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("pending requests: user id is required: %w", model.ErrValidation)
	}
	conns, err := s.store.FindConnections(ctx, store.ConnectionFilter{
		ReceiverID: userID,
		Status:     model.ConnectionPending,
	})
	if err != nil {
		return nil, fmt.Errorf("pending requests: %w", err)
	}

	senders := make([]uuid.UUID, len(conns))
	for i, c := range conns {
		senders[i] = c.SenderID
	}
	profiles, err := s.profiles.ResolveMany(ctx, senders)
	if err != nil {
		return nil, err
	}

	res := make([]model.PendingRequest, len(conns))
	for i, c := range conns {
		res[i] = model.PendingRequest{
			ConnectionID: c.ID,
			From:         profiles[i],
			CreatedAt:    c.CreatedAt,
		}
	}
	return res, nil
}

func validatePair(a, b uuid.UUID) error {
	if a == uuid.Nil || b == uuid.Nil {
		return fmt.Errorf("both users are required: %w", model.ErrValidation)
	}
	if a == b {
		return model.ErrSelfConnection
	}
	return nil
}

func connectionEvent(topic string, actorID uuid.UUID, c *model.Connection, auto bool) *event.DomainEvent {
	return event.NewDomainEvent(topic, actorID, &event.ConnectionChange{
		ConnectionID: c.ID,
		SenderID:     c.SenderID,
		ReceiverID:   c.ReceiverID,
		Status:       c.Status.String(),
		AutoAccepted: auto,
	})
}

func requestMessage(p model.Profile) string {
	if p.FullName == "" {
		return "You have a new contact request"
	}
	return p.FullName + " sent you a contact request"
}

func acceptedMessage(p model.Profile) string {
	if p.FullName == "" {
		return "Your contact request was accepted"
	}
	return "You are now connected with " + p.FullName
}
