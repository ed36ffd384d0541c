package service

import (
	"context"
	"errors"
	"time"

	"marketplace_backend/internal/events"
	"marketplace_backend/internal/matching/transport"
	requestdomain "marketplace_backend/internal/requests/domain"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultFanoutLimit caps the recipients of one batch. Larger configured
// limits are clamped to it.
const DefaultFanoutLimit = 15

const (
	// New leads always go out as high priority; urgency only changes the
	// wording the channel renders.
	priorityHigh = "high"

	counterReasonNewRequest = "new_request"

	outcomeNotified  = "notified"
	outcomeFailed    = "failed"
	outcomeExhausted = "quota_exhausted"
)

var errQuotaExhausted = errors.New("lead quota exhausted")

// RequestStore reads requests and records which providers were notified.
type RequestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*requestdomain.ServiceRequest, error)
	UpsertNotified(ctx context.Context, requestID, providerID uuid.UUID, score float64, at time.Time) error
}

// EligibilityFinder produces the ranked candidates for auto mode.
type EligibilityFinder interface {
	FindEligibleProviders(ctx context.Context, requestID uuid.UUID, opts FindOptions) (transport.EligibilityResult, error)
}

// LeadQuota consumes lead quota. ConsumeLead is the conditional form used in
// auto mode; IncrementLeadUsage always counts.
type LeadQuota interface {
	ConsumeLead(ctx context.Context, providerID uuid.UUID) (bool, error)
	IncrementLeadUsage(ctx context.Context, providerID uuid.UUID) error
}

// NotificationChannel delivers a notification to one provider.
type NotificationChannel interface {
	SendProviderNotification(ctx context.Context, providerID, requestID uuid.UUID, notificationType, priority string) error
}

// CountersEmitter pushes a counters update to connected users. Fire and forget.
type CountersEmitter interface {
	EmitCountersUpdate(userIDs []uuid.UUID, payload map[string]any)
}

// Dispatcher notifies providers about a request with bounded fan-out.
type Dispatcher struct {
	requests    RequestStore
	eligibility EligibilityFinder
	quota       LeadQuota
	channel     NotificationChannel
	realtime    CountersEmitter
	eventBus    events.Bus
	metrics     *Metrics
	log         *logger.Logger
	fanout      int
	now         func() time.Time
}

// NewDispatcher creates a dispatcher. realtime and eventBus may be nil.
func NewDispatcher(requests RequestStore, eligibility EligibilityFinder, quota LeadQuota, channel NotificationChannel, realtime CountersEmitter, eventBus events.Bus, metrics *Metrics, fanout int, log *logger.Logger) *Dispatcher {
	if fanout <= 0 || fanout > DefaultFanoutLimit {
		fanout = DefaultFanoutLimit
	}
	return &Dispatcher{
		requests:    requests,
		eligibility: eligibility,
		quota:       quota,
		channel:     channel,
		realtime:    realtime,
		eventBus:    eventBus,
		metrics:     metrics,
		log:         log,
		fanout:      fanout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type recipient struct {
	providerID uuid.UUID
	score      float64
}

// NotifyProviders sends a new-request notification to the selected or
// eligible providers of a request. Only a missing request or a failed
// eligibility lookup is returned as an error; per-provider failures are
// reported in the result.
func (d *Dispatcher) NotifyProviders(ctx context.Context, requestID uuid.UUID, mode transport.Mode, selected []uuid.UUID) (transport.NotifyResult, error) {
	req, err := d.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.NotifyResult{}, err
	}

	if mode != transport.ModeDirected {
		mode = transport.ModeAuto
	}

	var recipients []recipient
	if mode == transport.ModeDirected {
		ids := dedupe(selected)
		if len(ids) == 0 {
			ids = dedupe(req.SelectedProviders)
		}
		if len(ids) == 0 {
			d.log.Info("directed request has no selected providers, using auto mode", "requestId", requestID)
			mode = transport.ModeAuto
		}
		for _, id := range ids {
			recipients = append(recipients, recipient{providerID: id})
		}
	}

	if mode == transport.ModeAuto {
		eligible, err := d.eligibility.FindEligibleProviders(ctx, requestID, FindOptions{})
		if err != nil {
			return transport.NotifyResult{}, err
		}
		for _, ep := range eligible.EligibleProviders {
			recipients = append(recipients, recipient{providerID: ep.ProviderID, score: ep.Score})
		}
	}

	if len(recipients) > d.fanout {
		recipients = recipients[:d.fanout]
	}

	outcomes := make([]transport.NotifyOutcome, len(recipients))
	var g errgroup.Group
	g.SetLimit(d.fanout)
	for i, r := range recipients {
		i, r := i, r
		g.Go(func() error {
			outcomes[i] = d.notifyOne(ctx, req, mode, r)
			return nil
		})
	}
	_ = g.Wait()

	result := transport.NotifyResult{RequestID: requestID, Mode: mode, Results: outcomes}
	for _, o := range outcomes {
		if o.Notified {
			result.TotalNotified++
		} else {
			result.TotalFailed++
		}
	}

	d.log.Info("providers notified",
		"requestId", requestID,
		"mode", mode,
		"notified", result.TotalNotified,
		"failed", result.TotalFailed,
	)
	if d.eventBus != nil {
		d.eventBus.Publish(ctx, events.ProvidersNotified{
			BaseEvent:     events.NewBaseEvent(),
			RequestID:     requestID,
			Mode:          string(mode),
			TotalNotified: result.TotalNotified,
			TotalFailed:   result.TotalFailed,
		})
	}
	return result, nil
}

func (d *Dispatcher) notifyOne(ctx context.Context, req *requestdomain.ServiceRequest, mode transport.Mode, r recipient) transport.NotifyOutcome {
	score := r.score
	outcome := transport.NotifyOutcome{ProviderID: r.providerID, Score: &score}
	providerKey := r.providerID.String()

	fail := func(step, label string, err error) transport.NotifyOutcome {
		d.log.DeliveryFailed(step, providerKey, err)
		d.metrics.notification(string(mode), label)
		outcome.Error = err.Error()
		return outcome
	}

	if mode == transport.ModeDirected {
		if err := d.quota.IncrementLeadUsage(ctx, r.providerID); err != nil {
			d.log.Warn("lead usage increment failed", "providerId", r.providerID, "error", err)
		}
	} else {
		granted, err := d.quota.ConsumeLead(ctx, r.providerID)
		switch {
		case err != nil:
			d.log.Warn("lead usage increment failed", "providerId", r.providerID, "error", err)
		case !granted:
			return fail("quota", outcomeExhausted, errQuotaExhausted)
		}
	}

	if err := d.requests.UpsertNotified(ctx, req.ID, r.providerID, score, d.now()); err != nil {
		return fail("record", outcomeFailed, err)
	}

	if err := d.channel.SendProviderNotification(ctx, r.providerID, req.ID, transport.NotificationTypeNewRequest, priorityHigh); err != nil {
		return fail("channel", outcomeFailed, err)
	}

	if d.realtime != nil {
		d.realtime.EmitCountersUpdate([]uuid.UUID{r.providerID}, map[string]any{
			"reason":    counterReasonNewRequest,
			"requestId": req.ID,
		})
	}

	d.metrics.notification(string(mode), outcomeNotified)
	outcome.Notified = true
	return outcome
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
