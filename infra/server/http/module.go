package http

import (
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(
		fx.Annotate(
			NewServer,
			fx.ParamTags(``, ``, `group:"routes"`),
		),
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)
