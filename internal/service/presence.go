package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
)

// Presencer is the primary interface for transport handlers to open and close
// live sessions.
type Presencer interface {
	Connect(ctx context.Context, userID uuid.UUID, meta registry.ConnectMetadata) (registry.Connector, error)
	Disconnect(userID, connID uuid.UUID)
	Online() []uuid.UUID
	IsOnline(userID uuid.UUID) bool
	Stats() model.HubStats
}

// BuildVersion is reported to clients in the connected handshake.
type BuildVersion string

type PresenceService struct {
	hub     registry.Hubber
	typing  Typer
	logger  *slog.Logger
	version string
}

func NewPresenceService(hub registry.Hubber, typing Typer, logger *slog.Logger, version BuildVersion) *PresenceService {
	return &PresenceService{
		hub:     hub,
		typing:  typing,
		logger:  logger,
		version: string(version),
	}
}

// Connect registers a fresh connector as the user's only live handle.
func (s *PresenceService) Connect(ctx context.Context, userID uuid.UUID, meta registry.ConnectMetadata) (registry.Connector, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("connect: user id is required: %w", model.ErrValidation)
	}

	conn := s.hub.NewConnector(ctx, userID, meta)

	// [HANDSHAKE] queued before registration so it precedes the first snapshot
	conn.Send(event.NewSystemEvent(userID, event.Connected, event.PriorityHigh, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  conn.GetID().String(),
		ServerVersion: s.version,
	}))

	if old := s.hub.Register(conn); old != nil {
		// [LAST_CONNECTION_WINS] The superseded transport terminates itself once
		// its connector is done; it must not unregister the new handle.
		s.logger.Info("CONNECTION_SUPERSEDED",
			"user_id", userID,
			"old_conn_id", old.GetID(),
			"new_conn_id", conn.GetID(),
		)
		old.Close()
	}

	return conn, nil
}

// Disconnect clears presence only. In-flight state transitions are never reverted.
func (s *PresenceService) Disconnect(userID, connID uuid.UUID) {
	if !s.hub.Unregister(userID, connID) {
		return
	}
	if s.typing != nil {
		s.typing.ClearUser(userID)
	}
}

func (s *PresenceService) Online() []uuid.UUID { return s.hub.AllOnline() }

func (s *PresenceService) IsOnline(userID uuid.UUID) bool { return s.hub.IsConnected(userID) }

func (s *PresenceService) Stats() model.HubStats { return s.hub.Stats() }
