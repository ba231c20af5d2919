package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// ProfileMiddleware adds timing and outcome logging to profile resolution.
type ProfileMiddleware struct {
	Next   ProfileResolver
	Logger *slog.Logger
}

func NewProfileMiddleware(next ProfileResolver, logger *slog.Logger) ProfileResolver {
	return &ProfileMiddleware{Next: next, Logger: logger}
}

func (m *ProfileMiddleware) Resolve(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	start := time.Now()

	res, err := m.Next.Resolve(ctx, id)
	if err != nil {
		m.Logger.Warn("PROFILE_RESOLUTION_FAILED",
			"user_id", id,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, err
}

// ResolvePair wraps the concurrent lookup with execution timing.
func (m *ProfileMiddleware) ResolvePair(ctx context.Context, a, b uuid.UUID) (model.Profile, model.Profile, error) {
	start := time.Now()

	pa, pb, err := m.Next.ResolvePair(ctx, a, b)

	duration := time.Since(start)
	if err != nil {
		m.Logger.Error("PROFILE_PAIR_RESOLUTION_FAILED",
			"err", err,
			"a_id", a,
			"b_id", b,
			"duration_ms", duration.Milliseconds(),
		)
	} else {
		m.Logger.Debug("PROFILE_PAIR_RESOLVED", "duration_ms", duration.Milliseconds())
	}
	return pa, pb, err
}

func (m *ProfileMiddleware) ResolveMany(ctx context.Context, ids []uuid.UUID) ([]model.Profile, error) {
	start := time.Now()

	res, err := m.Next.ResolveMany(ctx, ids)
	if err != nil {
		m.Logger.Warn("PROFILE_BATCH_RESOLUTION_FAILED",
			"size", len(ids),
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, err
}

func (m *ProfileMiddleware) Directory(ctx context.Context, except uuid.UUID) ([]model.Profile, error) {
	start := time.Now()

	res, err := m.Next.Directory(ctx, except)
	if err != nil {
		m.Logger.Warn("DIRECTORY_LIST_FAILED",
			"user_id", except,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, err
}
