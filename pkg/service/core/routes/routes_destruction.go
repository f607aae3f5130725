package routes

import (
	"net/http"

	"github.com/connect-dcc/datadestruction/pkg/service/core/handlers"
	"github.com/connect-dcc/datadestruction/pkg/service/core/transport"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

type DestructionEndpoints struct {
	DestroyRows http.HandlerFunc
}

func NewDestructionEndpoints(log zerolog.Logger, h *handlers.DestructionHandler) *DestructionEndpoints {
	return &DestructionEndpoints{
		DestroyRows: transport.For(h.DestroyRows).RequestFromJSON().Build(log),
	}
}

func NewDestructionRoutes(endpoints *DestructionEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Route("/run_bq_data_destruction", func(r chi.Router) {
			r.Post("/", endpoints.DestroyRows)
		})
	}
}
