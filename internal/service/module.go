package service

import (
	"context"
	"log/slog"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/store"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Fan-out
		fx.Annotate(
			NewDispatcher,
			fx.As(new(Notifier)),
		),
		func(n Notifier, cfg *config.Config, logger *slog.Logger) *TypingTracker {
			return NewTypingTracker(n, cfg.Typing.Timeout, logger)
		},
		func(t *TypingTracker) Typer { return t },

		// Domain services
		fx.Annotate(
			NewPresenceService,
			fx.As(new(Presencer)),
		),
		func(st store.Store, cfg *config.Config) (ProfileResolver, error) {
			return NewProfileCache(st, cfg.Profiles.CacheSize)
		},
		func(st store.Store, p ProfileResolver, n Notifier, e Exporter, logger *slog.Logger) Contacter {
			return NewContactMiddleware(NewContactService(st, p, n, e, logger), logger)
		},
		func(st store.Store, hub registry.Hubber, n Notifier, e Exporter, cfg *config.Config, logger *slog.Logger) Deliverer {
			return NewDeliveryMiddleware(NewDeliveryService(st, hub, n, e, logger, DeliveryOptions{
				RequireContact: cfg.Messaging.RequireContact,
				Tombstone:      cfg.Messaging.Tombstone,
			}), logger)
		},
	),

	// [DECORATION_LAYER] scoped to this module: the contact service resolves through it.
	fx.Decorate(func(orig ProfileResolver, logger *slog.Logger) ProfileResolver {
		return NewProfileMiddleware(orig, logger)
	}),

	fx.Invoke(func(lc fx.Lifecycle, t *TypingTracker) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				t.Close()
				return nil
			},
		})
	}),
)
