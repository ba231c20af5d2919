package clientdi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/infra/mongodb"
	"github.com/webitel/im-presence-service/internal/store"
	"github.com/webitel/im-presence-service/internal/store/breaker"
	"github.com/webitel/im-presence-service/internal/store/memory"
	"github.com/webitel/im-presence-service/internal/store/mongostore"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"store_clients",

	// [CONSTRUCTOR] Provides the breaker-guarded store for the configured driver
	fx.Provide(ProvideStore),
)

// ProvideStore builds the store selected by store.driver. The Mongo client is
// closed gracefully on app shutdown.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var backend store.Store

	switch cfg.Store.Driver {
	case config.StoreMemory:
		logger.Warn("STORE_VOLATILE", "driver", cfg.Store.Driver)
		backend = memory.New()

	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout*time.Duration(max(cfg.Mongo.ConnectRetries, 1)))
		defer cancel()

		client, err := mongodb.Connect(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}

		ms := mongostore.New(client.Database())
		if err := ms.EnsureIndexes(ctx); err != nil {
			_ = client.Close(context.Background())
			return nil, fmt.Errorf("mongo: %w", err)
		}

		// [LIFECYCLE] Ensures the connection pool is drained on app shutdown
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return client.Close(ctx)
			},
		})
		backend = ms

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	return breaker.New(backend, breaker.Settings{
		Name:             "store." + cfg.Store.Driver,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, logger), nil
}
