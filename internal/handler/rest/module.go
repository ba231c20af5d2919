package rest

import (
	httpsrv "github.com/webitel/im-presence-service/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("rest-handler",
	fx.Provide(
		NewHandler,
		fx.Annotate(
			func(h *Handler) httpsrv.Route { return h },
			fx.ResultTags(`group:"routes"`),
		),
	),
)
