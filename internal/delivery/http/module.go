package http

import (
	"go.uber.org/fx"

	"dealersign/internal/delivery/http/handler"
	"dealersign/internal/delivery/http/router"
)

var Module = fx.Module("http",
	fx.Provide(
		handler.NewHealthHandler,
		handler.NewWorkerHandler,
		router.NewRouter,
	),
)
