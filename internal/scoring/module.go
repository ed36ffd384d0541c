// Package scoring provides the provider scoring bounded context module.
package scoring

import (
	"context"

	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	providerrepo "marketplace_backend/internal/providers/repository"
	"marketplace_backend/internal/scoring/handler"
	"marketplace_backend/internal/scoring/repository"
	"marketplace_backend/internal/scoring/service"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshQueue defers score recomputation to a background worker.
type RefreshQueue interface {
	EnqueueScoreRefresh(ctx context.Context, providerID uuid.UUID) error
}

// Module is the scoring bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	queue   RefreshQueue
	log     *logger.Logger
}

// NewModule wires the scoring service and subscribes it to activity events.
// A nil queue makes refreshes run inline on the event goroutine.
func NewModule(pool *pgxpool.Pool, providers *providerrepo.Repository, plans service.PlanResolver, eventBus events.Bus, queue RefreshQueue, log *logger.Logger) *Module {
	svc := service.New(providers, repository.New(pool), plans, log)
	m := &Module{
		handler: handler.New(svc),
		service: svc,
		queue:   queue,
		log:     log,
	}

	eventBus.Subscribe(events.ReviewSubmitted{}.EventName(), events.HandlerFunc(m.onActivity))
	eventBus.Subscribe(events.BookingCompleted{}.EventName(), events.HandlerFunc(m.onActivity))

	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scoring"
}

// Service returns the scoring engine for other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts scoring routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

func (m *Module) onActivity(ctx context.Context, event events.Event) error {
	var providerID uuid.UUID
	switch e := event.(type) {
	case events.ReviewSubmitted:
		providerID = e.ProviderID
	case events.BookingCompleted:
		providerID = e.ProviderID
	default:
		return nil
	}
	if providerID == uuid.Nil {
		return nil
	}

	if m.queue != nil {
		err := m.queue.EnqueueScoreRefresh(ctx, providerID)
		if err == nil {
			return nil
		}
		m.log.Warn("score refresh enqueue failed, refreshing inline", "providerId", providerID, "error", err)
	}
	return m.service.RefreshScore(ctx, providerID)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
