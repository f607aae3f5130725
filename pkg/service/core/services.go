package core

import (
	"github.com/connect-dcc/datadestruction/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Services struct {
	DestructionService service.DestructionService
}

func NewServices(
	registry service.TargetRegistry,
	destructionAPI service.DestructionAPI,
	requests *prometheus.CounterVec,
	log zerolog.Logger,
) *Services {
	return &Services{
		DestructionService: NewDestructionService(
			registry,
			destructionAPI,
			requests,
			log.With().Str("service", "destruction").Logger(),
		),
	}
}
