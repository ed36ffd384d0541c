package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"marketplace_backend/internal/events"
	"marketplace_backend/internal/matching/transport"
	"marketplace_backend/internal/providers/domain"
	requestdomain "marketplace_backend/internal/requests/domain"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFixture struct {
	request  *requestdomain.ServiceRequest
	requests *fakeRequests
	finder   *geoFinder
	quota    *fakeQuota
	scorer   *fixedScorer
	channel  *fakeChannel
	emitter  *recordingEmitter
	bus      *events.InMemoryBus
	metrics  *Metrics
}

func newDispatchFixture(t *testing.T, providers ...domain.Provider) *dispatchFixture {
	t.Helper()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	req := &requestdomain.ServiceRequest{
		ID:         uuid.New(),
		Category:   "Plumbing",
		Urgency:    requestdomain.UrgencyImmediate,
		Location:   &domain.GeoPoint{Lat: origin.Lat, Lon: origin.Lon},
		Visibility: requestdomain.VisibilityAuto,
	}
	return &dispatchFixture{
		request:  req,
		requests: newFakeRequests(req),
		finder:   &geoFinder{providers: providers},
		quota:    newFakeQuota(providers...),
		scorer:   newFixedScorer(),
		channel:  &fakeChannel{failFor: map[uuid.UUID]bool{}},
		emitter:  &recordingEmitter{},
		bus:      events.NewInMemoryBus(logger.Discard()),
		metrics:  metrics,
	}
}

func (f *dispatchFixture) dispatcher() *Dispatcher {
	eligibility := NewEligibility(f.requests, f.finder, f.quota, f.scorer, nil, EligibilityConfig{}, f.metrics, logger.Discard())
	return NewDispatcher(f.requests, eligibility, f.quota, f.channel, f.emitter, f.bus, f.metrics, 0, logger.Discard())
}

func TestNotifyNeverExceedsFanoutLimit(t *testing.T) {
	providers := make([]domain.Provider, 0, 20)
	for i := 0; i < 20; i++ {
		providers = append(providers, newProvider(fmt.Sprintf("P%02d", i), domain.PlanPro, 0, north(1)))
	}
	f := newDispatchFixture(t, providers...)
	for i, p := range providers {
		f.scorer.scores[p.ID] = float64(i)
	}

	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)

	require.Len(t, result.Results, DefaultFanoutLimit)
	assert.Equal(t, DefaultFanoutLimit, result.TotalNotified)
	assert.Zero(t, result.TotalFailed)
	assert.Equal(t, providers[19].ID, result.Results[0].ProviderID)
	assert.Len(t, f.requests.notified[f.request.ID], DefaultFanoutLimit)
	assert.Len(t, f.emitter.users, DefaultFanoutLimit)
	assert.Equal(t, transport.NotificationTypeNewRequest, f.channel.last.notificationType)
	assert.Equal(t, priorityHigh, f.channel.last.priority)
}

func TestExhaustedBasicProviderSkippedInAutoButCountedInDirected(t *testing.T) {
	exhausted := newProvider("Basic", domain.PlanBasic, 5, north(2))
	other := newProvider("Pro", domain.PlanPro, 0, north(3))
	f := newDispatchFixture(t, exhausted, other)
	d := f.dispatcher()
	ctx := context.Background()

	auto, err := d.NotifyProviders(ctx, f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)
	require.Len(t, auto.Results, 1)
	assert.Equal(t, other.ID, auto.Results[0].ProviderID)
	assert.Zero(t, f.quota.incrementsFor(exhausted.ID))

	directed, err := d.NotifyProviders(ctx, f.request.ID, transport.ModeDirected, []uuid.UUID{exhausted.ID, exhausted.ID})
	require.NoError(t, err)
	require.Len(t, directed.Results, 1)
	assert.True(t, directed.Results[0].Notified)
	require.NotNil(t, directed.Results[0].Score)
	assert.Zero(t, *directed.Results[0].Score)
	assert.Equal(t, 1, f.quota.incrementsFor(exhausted.ID))
	assert.Equal(t, 6, f.quota.used[exhausted.ID])
}

func TestOneFailingRecipientDoesNotAbortTheBatch(t *testing.T) {
	a := newProvider("A", domain.PlanPro, 0, north(1))
	b := newProvider("B", domain.PlanPro, 0, north(2))
	c := newProvider("C", domain.PlanPro, 0, north(3))
	f := newDispatchFixture(t, a, b, c)
	f.channel.failFor[b.ID] = true
	f.requests.failFor[c.ID] = true

	var published []events.ProvidersNotified
	f.bus.Subscribe(events.ProvidersNotified{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		published = append(published, e.(events.ProvidersNotified))
		return nil
	}))

	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)
	f.bus.Wait()

	assert.Equal(t, 1, result.TotalNotified)
	assert.Equal(t, 2, result.TotalFailed)
	byID := map[uuid.UUID]transport.NotifyOutcome{}
	for _, o := range result.Results {
		byID[o.ProviderID] = o
	}
	assert.True(t, byID[a.ID].Notified)
	assert.Equal(t, "smtp timeout", byID[b.ID].Error)
	assert.Equal(t, "write failed", byID[c.ID].Error)
	assert.Len(t, f.emitter.users, 1)

	require.Len(t, published, 1)
	assert.Equal(t, 2, published[0].TotalFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.notifications.WithLabelValues("auto", outcomeNotified)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.notifications.WithLabelValues("auto", outcomeFailed)))
}

func TestQuotaStoreErrorsAreSwallowed(t *testing.T) {
	a := newProvider("A", domain.PlanPro, 0, north(1))
	f := newDispatchFixture(t, a)
	f.quota.consumeErr = errors.New("connection reset")

	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalNotified)
}

func TestDirectedWithoutIdsUsesRequestSelection(t *testing.T) {
	a := newProvider("A", domain.PlanPro, 0, north(1))
	b := newProvider("B", domain.PlanPro, 0, north(2))
	f := newDispatchFixture(t, a, b)
	f.request.SelectedProviders = []uuid.UUID{b.ID}

	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeDirected, nil)
	require.NoError(t, err)
	assert.Equal(t, transport.ModeDirected, result.Mode)
	require.Len(t, result.Results, 1)
	assert.Equal(t, b.ID, result.Results[0].ProviderID)
}

func TestDirectedWithNoSelectionFallsBackToAuto(t *testing.T) {
	a := newProvider("A", domain.PlanPro, 0, north(1))
	f := newDispatchFixture(t, a)

	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeDirected, nil)
	require.NoError(t, err)
	assert.Equal(t, transport.ModeAuto, result.Mode)
	assert.Equal(t, 1, result.TotalNotified)
}

func TestNotifyUnknownRequestFails(t *testing.T) {
	f := newDispatchFixture(t)
	_, err := f.dispatcher().NotifyProviders(context.Background(), uuid.New(), transport.ModeAuto, nil)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEmptyCandidateSetStillReturnsSummary(t *testing.T) {
	f := newDispatchFixture(t)
	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Zero(t, result.TotalNotified)
	assert.Zero(t, result.TotalFailed)
}

func TestConfiguredFanoutAboveCapIsClamped(t *testing.T) {
	providers := make([]domain.Provider, 0, 30)
	for i := 0; i < 30; i++ {
		providers = append(providers, newProvider(fmt.Sprintf("P%02d", i), domain.PlanPro, 0, north(1)))
	}
	f := newDispatchFixture(t, providers...)
	eligibility := NewEligibility(f.requests, f.finder, f.quota, f.scorer, nil, EligibilityConfig{}, f.metrics, logger.Discard())
	d := NewDispatcher(f.requests, eligibility, f.quota, f.channel, f.emitter, nil, f.metrics, 40, logger.Discard())

	result, err := d.NotifyProviders(context.Background(), f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)
	assert.Len(t, result.Results, DefaultFanoutLimit)
	assert.Equal(t, DefaultFanoutLimit, result.TotalNotified)
}

func TestScheduledRequestNotifiesWithHighPriorityAndReason(t *testing.T) {
	p := newProvider("Pro", domain.PlanPro, 0, north(1))
	f := newDispatchFixture(t, p)
	f.request.Urgency = requestdomain.UrgencyScheduled

	result, err := f.dispatcher().NotifyProviders(context.Background(), f.request.ID, transport.ModeAuto, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalNotified)
	assert.Equal(t, priorityHigh, f.channel.last.priority)
	assert.Equal(t, counterReasonNewRequest, f.emitter.payload["reason"])
	assert.Equal(t, f.request.ID, f.emitter.payload["requestId"])
}
