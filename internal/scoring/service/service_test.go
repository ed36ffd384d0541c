package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProviders struct {
	byID    map[uuid.UUID]*domain.Provider
	saved   map[uuid.UUID]domain.Score
	getErr  error
	saveErr error
}

func (f *fakeProviders) GetByID(_ context.Context, id uuid.UUID) (*domain.Provider, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("provider not found")
	}
	return p, nil
}

func (f *fakeProviders) SaveScore(_ context.Context, id uuid.UUID, score domain.Score) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = map[uuid.UUID]domain.Score{}
	}
	f.saved[id] = score
	return nil
}

type fakeMetrics struct {
	m     Metrics
	err   error
	calls int
	since time.Time
}

func (f *fakeMetrics) ConsistencyMetrics(_ context.Context, _ uuid.UUID, since time.Time) (Metrics, error) {
	f.calls++
	f.since = since
	return f.m, f.err
}

type defaultPlans struct{}

func (defaultPlans) GetPlan(_ context.Context, name domain.PlanName) domain.Plan {
	if p, ok := domain.DefaultPlan(name); ok {
		return p
	}
	p, _ := domain.DefaultPlan(domain.PlanFree)
	return p
}

var clock = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newScoringService(p *fakeProviders, m *fakeMetrics) *Service {
	svc := New(p, m, defaultPlans{}, logger.Discard())
	svc.now = func() time.Time { return clock }
	return svc
}

func storedProvider(plan domain.PlanName) *domain.Provider {
	return &domain.Provider{
		ID:           uuid.New(),
		Subscription: domain.Subscription{Plan: plan, Status: domain.StatusActive},
		Rating:       domain.Rating{Average: 4.5, Count: 20},
		Stats:        domain.Stats{CompletedJobs: 25, ResponseRate: 0.9},
	}
}

func TestCalculateByIDPersists(t *testing.T) {
	p := storedProvider(domain.PlanPro)
	providers := &fakeProviders{byID: map[uuid.UUID]*domain.Provider{p.ID: p}}
	metrics := &fakeMetrics{}
	svc := newScoringService(providers, metrics)

	result, err := svc.Calculate(context.Background(), domain.RefByID(p.ID))
	require.NoError(t, err)
	assert.Greater(t, result.Total, 0.0)
	assert.Equal(t, 4.5, result.Details.AverageRating)
	assert.Equal(t, "pro", result.Details.SubscriptionPlan)

	saved, ok := providers.saved[p.ID]
	require.True(t, ok)
	assert.InDelta(t, result.Total, saved.Total, 0.005)
	require.NotNil(t, saved.LastCalculated)
	assert.True(t, saved.LastCalculated.Equal(clock))
	assert.True(t, metrics.since.Equal(clock.Add(-ConsistencyWindow)))
}

func TestCalculateUnknownProviderScoresZero(t *testing.T) {
	providers := &fakeProviders{byID: map[uuid.UUID]*domain.Provider{}}
	svc := newScoringService(providers, &fakeMetrics{})

	result, err := svc.Calculate(context.Background(), domain.RefByID(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
	assert.Empty(t, providers.saved)
}

func TestCalculateTransientSnapshotIsNotPersisted(t *testing.T) {
	providers := &fakeProviders{}
	metrics := &fakeMetrics{}
	svc := newScoringService(providers, metrics)

	draft := storedProvider(domain.PlanBasic)
	draft.ID = uuid.Nil
	result, err := svc.Calculate(context.Background(), domain.RefOf(draft))
	require.NoError(t, err)
	assert.Greater(t, result.Total, 0.0)
	assert.Empty(t, providers.saved)
	assert.Zero(t, metrics.calls)
	assert.Equal(t, NeutralConsistency, result.Breakdown.ConsistencyPoints)
}

func TestPreviewNeverPersists(t *testing.T) {
	p := storedProvider(domain.PlanFree)
	providers := &fakeProviders{byID: map[uuid.UUID]*domain.Provider{p.ID: p}}
	svc := newScoringService(providers, &fakeMetrics{})

	_, err := svc.Preview(context.Background(), domain.RefOf(p))
	require.NoError(t, err)
	assert.Empty(t, providers.saved)
}

func TestMetricsFailureUsesNeutralConsistency(t *testing.T) {
	p := storedProvider(domain.PlanFree)
	svc := newScoringService(&fakeProviders{}, &fakeMetrics{err: errors.New("timeout")})

	result := svc.Evaluate(context.Background(), p)
	assert.Equal(t, NeutralConsistency, result.Breakdown.ConsistencyPoints)
}

func TestCalculatePropagatesStorageErrors(t *testing.T) {
	svc := newScoringService(&fakeProviders{getErr: errors.New("db down")}, &fakeMetrics{})
	_, err := svc.Calculate(context.Background(), domain.RefByID(uuid.New()))
	assert.Error(t, err)

	p := storedProvider(domain.PlanFree)
	svc = newScoringService(&fakeProviders{saveErr: errors.New("write failed")}, &fakeMetrics{})
	result, err := svc.Calculate(context.Background(), domain.RefOf(p))
	assert.Error(t, err)
	assert.Greater(t, result.Total, 0.0)
}

func TestPlanAloneChangesRanking(t *testing.T) {
	svc := newScoringService(&fakeProviders{}, &fakeMetrics{m: Metrics{CompletedBookings: 3, TerminalBookings: 4}})

	free := storedProvider(domain.PlanFree)
	pro := storedProvider(domain.PlanPro)
	pro.Rating, pro.Stats = free.Rating, free.Stats

	assert.Greater(t, svc.Evaluate(context.Background(), pro).Total, svc.Evaluate(context.Background(), free).Total)
}
