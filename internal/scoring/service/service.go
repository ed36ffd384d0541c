// Package service computes provider ranking scores.
package service

import (
	"context"
	"fmt"
	"time"

	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

// ConsistencyWindow is the trailing window for consistency metrics.
const ConsistencyWindow = 90 * 24 * time.Hour

// ProviderStore loads providers and stores computed scores.
type ProviderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error)
	SaveScore(ctx context.Context, id uuid.UUID, score domain.Score) error
}

// MetricsReader aggregates recent bookings, reviews and proposals.
type MetricsReader interface {
	ConsistencyMetrics(ctx context.Context, providerID uuid.UUID, since time.Time) (Metrics, error)
}

// PlanResolver resolves a plan definition; it must not fail.
type PlanResolver interface {
	GetPlan(ctx context.Context, name domain.PlanName) domain.Plan
}

// Service is the scoring engine.
type Service struct {
	providers ProviderStore
	metrics   MetricsReader
	plans     PlanResolver
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new scoring service.
func New(providers ProviderStore, metrics MetricsReader, plans PlanResolver, log *logger.Logger) *Service {
	return &Service{
		providers: providers,
		metrics:   metrics,
		plans:     plans,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Calculate scores the referenced provider and persists the result when the
// provider is a stored record. Unknown providers score zero.
func (s *Service) Calculate(ctx context.Context, ref domain.ProviderRef) (Result, error) {
	p, err := s.resolve(ctx, ref)
	if err != nil || p == nil {
		return Result{}, err
	}

	result := s.Evaluate(ctx, p)
	if p.Identified() {
		if err := s.Persist(ctx, p.ID, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Preview scores the referenced provider without writing anything.
func (s *Service) Preview(ctx context.Context, ref domain.ProviderRef) (Result, error) {
	p, err := s.resolve(ctx, ref)
	if err != nil || p == nil {
		return Result{}, err
	}
	return s.Evaluate(ctx, p), nil
}

// Evaluate computes the score for a loaded snapshot. Consistency metrics that
// cannot be read fall back to the neutral value.
func (s *Service) Evaluate(ctx context.Context, p *domain.Provider) Result {
	consistency := NeutralConsistency
	if p.Identified() {
		m, err := s.metrics.ConsistencyMetrics(ctx, p.ID, s.now().Add(-ConsistencyWindow))
		if err != nil {
			s.log.Warn("consistency metrics unavailable, using neutral value", "providerId", p.ID, "error", err)
		} else {
			consistency = Consistency(m)
		}
	}

	return Compute(Inputs{
		AverageRating: p.Rating.Average,
		CompletedJobs: p.Stats.CompletedJobs,
		ResponseRate:  p.Stats.ResponseRate,
		Consistency:   consistency,
		Plan:          s.plans.GetPlan(ctx, planOf(p)),
	})
}

// Persist stores the unrounded score with the current timestamp.
func (s *Service) Persist(ctx context.Context, providerID uuid.UUID, result Result) error {
	score := result.Score()
	now := s.now()
	score.LastCalculated = &now
	if err := s.providers.SaveScore(ctx, providerID, score); err != nil {
		return fmt.Errorf("persist score for %s: %w", providerID, err)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, ref domain.ProviderRef) (*domain.Provider, error) {
	if p, ok := ref.Resolved(); ok {
		return p, nil
	}
	if ref.ID() == uuid.Nil {
		return nil, nil
	}

	p, err := s.providers.GetByID(ctx, ref.ID())
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("score requested for unknown provider", "providerId", ref.ID())
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func planOf(p *domain.Provider) domain.PlanName {
	if p.Subscription.Plan == "" {
		return domain.PlanFree
	}
	return p.Subscription.Plan
}

// RefreshScore recomputes and stores the score of a stored provider. It is
// the entry point for background refresh tasks.
func (s *Service) RefreshScore(ctx context.Context, providerID uuid.UUID) error {
	_, err := s.Calculate(ctx, domain.RefByID(providerID))
	return err
}
