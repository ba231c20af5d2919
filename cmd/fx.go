package cmd

import (
	"log/slog"

	"github.com/webitel/im-presence-service/config"
	clientdi "github.com/webitel/im-presence-service/infra/client/di"
	httpsrv "github.com/webitel/im-presence-service/infra/server/http"
	"github.com/webitel/im-presence-service/internal/adapter/pubsub"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/handler/rest"
	"github.com/webitel/im-presence-service/internal/handler/ws"
	"github.com/webitel/im-presence-service/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config, logger *slog.Logger) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			func() *slog.Logger { return logger },
			func() service.BuildVersion { return service.BuildVersion(version) },
		),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		clientdi.Module,
		pubsub.Module,
		registry.Module,
		service.Module,
		ws.Module,
		rest.Module,
		httpsrv.Module,
	)
}
