// Package matching provides provider eligibility, ranking and notification dispatch.
package matching

import (
	"context"

	"marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/matching/cache"
	"marketplace_backend/internal/matching/handler"
	"marketplace_backend/internal/matching/service"
	"marketplace_backend/internal/matching/transport"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/google/uuid"
)

// NotifyQueue hands notification batches to a background worker.
type NotifyQueue interface {
	EnqueueNotifyProviders(ctx context.Context, requestID uuid.UUID, mode string, providerIDs []uuid.UUID) error
}

// RequestStore is the request persistence matching needs.
type RequestStore interface {
	service.RequestReader
	service.RequestStore
}

// Deps are the collaborators of the matching module.
type Deps struct {
	Requests   RequestStore
	Candidates service.CandidateFinder
	Quota      interface {
		service.QuotaChecker
		service.LeadQuota
	}
	Scorer   service.Scorer
	Channel  service.NotificationChannel
	Realtime service.CountersEmitter
	Store    cache.Store
	Metrics  *service.Metrics
	EventBus events.Bus
	Queue    NotifyQueue
	Config   config.MatchingConfig
	Val      *validator.Validator
	Log      *logger.Logger
}

// Module is the matching bounded context module implementing http.Module.
type Module struct {
	eligibility *service.Eligibility
	dispatcher  *service.Dispatcher
	handler     *handler.Handler
	queue       NotifyQueue
	log         *logger.Logger
}

// NewModule wires the filter and dispatcher and subscribes to request publication.
// A nil Queue dispatches inline on the event goroutine.
func NewModule(deps Deps) *Module {
	eligibility := service.NewEligibility(
		deps.Requests,
		deps.Candidates,
		deps.Quota,
		deps.Scorer,
		deps.Store,
		service.EligibilityConfig{
			ImmediateRadiusKm: deps.Config.GetImmediateRadiusKm(),
			ScheduledRadiusKm: deps.Config.GetScheduledRadiusKm(),
			CacheTTL:          deps.Config.GetEligibilityCacheTTL(),
		},
		deps.Metrics,
		deps.Log,
	)
	dispatcher := service.NewDispatcher(
		deps.Requests,
		eligibility,
		deps.Quota,
		deps.Channel,
		deps.Realtime,
		deps.EventBus,
		deps.Metrics,
		deps.Config.GetNotifyFanoutLimit(),
		deps.Log,
	)

	m := &Module{
		eligibility: eligibility,
		dispatcher:  dispatcher,
		handler:     handler.New(eligibility, dispatcher, deps.Val),
		queue:       deps.Queue,
		log:         deps.Log,
	}
	if deps.EventBus != nil {
		deps.EventBus.Subscribe(events.ServiceRequestPublished{}.EventName(), events.HandlerFunc(m.onRequestPublished))
	}
	return m
}

func (m *Module) Name() string {
	return "matching"
}

func (m *Module) Eligibility() *service.Eligibility {
	return m.eligibility
}

func (m *Module) Dispatcher() *service.Dispatcher {
	return m.dispatcher
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

func (m *Module) onRequestPublished(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ServiceRequestPublished)
	if !ok {
		return nil
	}

	mode := transport.ModeAuto
	if e.Visibility == string(transport.ModeDirected) {
		mode = transport.ModeDirected
	}

	if m.queue != nil {
		err := m.queue.EnqueueNotifyProviders(ctx, e.RequestID, string(mode), e.SelectedProviderIDs)
		if err == nil {
			return nil
		}
		m.log.Warn("notify enqueue failed, dispatching inline", "requestId", e.RequestID, "error", err)
	}

	_, err := m.dispatcher.NotifyProviders(ctx, e.RequestID, mode, e.SelectedProviderIDs)
	return err
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
