package handlers

import (
	"github.com/connect-dcc/datadestruction/pkg/service/core"
)

type Handlers struct {
	DestructionHandler *DestructionHandler
}

func NewHandlers(s *core.Services) *Handlers {
	return &Handlers{
		DestructionHandler: NewDestructionHandler(s.DestructionService),
	}
}
