package ws

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-presence-service/config"
	httpsrv "github.com/webitel/im-presence-service/infra/server/http"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(
		NewRouter,
		func(cfg *config.Config) Options { return OptionsFromConfig(cfg) },
		NewWSHandler,
		fx.Annotate(
			func(h *WSHandler) httpsrv.Route { return h },
			fx.ResultTags(`group:"routes"`),
		),
	),
)

// Mount exposes the websocket endpoint.
func (h *WSHandler) Mount(r chi.Router) {
	r.Method(http.MethodGet, "/ws", h)
}
