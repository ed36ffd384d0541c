package realtime

import (
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/platform/logger"
)

// Module exposes the hub over HTTP.
type Module struct {
	hub     *Hub
	handler *Handler
}

func NewModule(log *logger.Logger) *Module {
	hub := NewHub(log)
	return &Module{hub: hub, handler: NewHandler(hub, nil)}
}

func (m *Module) Name() string {
	return "realtime"
}

// Hub returns the registry other modules publish through.
func (m *Module) Hub() *Hub {
	return m.hub
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
