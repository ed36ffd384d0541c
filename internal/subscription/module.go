// Package subscription provides the subscription and quota bounded context module.
package subscription

import (
	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	providerrepo "marketplace_backend/internal/providers/repository"
	"marketplace_backend/internal/subscription/handler"
	"marketplace_backend/internal/subscription/repository"
	"marketplace_backend/internal/subscription/service"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the subscription bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the subscription module with all its dependencies.
func NewModule(pool *pgxpool.Pool, providers *providerrepo.Repository, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), providers, eventBus, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "subscription"
}

// Service returns the quota manager for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts subscription routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.V1)
	m.handler.RegisterRoutes(ctx.Protected)
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
