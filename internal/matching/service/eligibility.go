// Package service implements provider eligibility and notification dispatch.
package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"marketplace_backend/internal/matching/cache"
	"marketplace_backend/internal/matching/transport"
	providerdomain "marketplace_backend/internal/providers/domain"
	requestdomain "marketplace_backend/internal/requests/domain"
	scoringservice "marketplace_backend/internal/scoring/service"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultImmediateRadiusKm = 15.0
	DefaultScheduledRadiusKm = 50.0
	DefaultCacheTTL          = 300 * time.Second

	cacheKeyPrefix     = "eligibility:"
	scoringParallelism = 8
)

// RequestReader loads service requests.
type RequestReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*requestdomain.ServiceRequest, error)
}

// CandidateFinder runs the candidate query against provider storage.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, q providerdomain.CandidateQuery) ([]providerdomain.Candidate, error)
}

// QuotaChecker answers whether a provider can take another lead.
type QuotaChecker interface {
	CanReceiveLead(ctx context.Context, p *providerdomain.Provider) bool
}

// Scorer computes and stores provider scores.
type Scorer interface {
	Evaluate(ctx context.Context, p *providerdomain.Provider) scoringservice.Result
	Persist(ctx context.Context, providerID uuid.UUID, result scoringservice.Result) error
}

// FindOptions tunes a single eligibility lookup.
type FindOptions struct {
	ForceRefresh bool
}

// EligibilityConfig carries the tunables of the filter.
type EligibilityConfig struct {
	ImmediateRadiusKm float64
	ScheduledRadiusKm float64
	CacheTTL          time.Duration
}

// Eligibility builds ranked candidate lists for requests, memoized per request.
type Eligibility struct {
	requests   RequestReader
	candidates CandidateFinder
	quota      QuotaChecker
	scorer     Scorer
	store      cache.Store
	cfg        EligibilityConfig
	metrics    *Metrics
	log        *logger.Logger
	now        func() time.Time
}

// NewEligibility creates the filter. A nil store disables caching.
func NewEligibility(requests RequestReader, candidates CandidateFinder, quota QuotaChecker, scorer Scorer, store cache.Store, cfg EligibilityConfig, metrics *Metrics, log *logger.Logger) *Eligibility {
	if cfg.ImmediateRadiusKm <= 0 {
		cfg.ImmediateRadiusKm = DefaultImmediateRadiusKm
	}
	if cfg.ScheduledRadiusKm <= 0 {
		cfg.ScheduledRadiusKm = DefaultScheduledRadiusKm
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Eligibility{
		requests:   requests,
		candidates: candidates,
		quota:      quota,
		scorer:     scorer,
		store:      store,
		cfg:        cfg,
		metrics:    metrics,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// FindEligibleProviders returns the ranked eligible providers for a request.
// Without ForceRefresh a cached result is returned verbatim while it is live.
func (e *Eligibility) FindEligibleProviders(ctx context.Context, requestID uuid.UUID, opts FindOptions) (transport.EligibilityResult, error) {
	key := cacheKeyPrefix + requestID.String()

	if opts.ForceRefresh {
		e.metrics.cacheLookup(CacheBypass)
	} else if cached, ok := e.readCache(ctx, key); ok {
		return cached, nil
	}

	started := time.Now()
	result, err := e.compute(ctx, requestID)
	if err != nil {
		return transport.EligibilityResult{}, err
	}
	e.metrics.observeEligibility(time.Since(started))

	e.writeCache(ctx, key, result)
	return result, nil
}

func (e *Eligibility) compute(ctx context.Context, requestID uuid.UUID) (transport.EligibilityResult, error) {
	req, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return transport.EligibilityResult{}, err
	}

	candidates, err := e.findCandidates(ctx, req)
	if err != nil {
		return transport.EligibilityResult{}, err
	}

	ranked := e.rank(ctx, candidates)
	return transport.EligibilityResult{
		EligibleProviders: ranked,
		TotalCount:        len(ranked),
		CalculatedAt:      e.now(),
	}, nil
}

// RadiusFor returns the search radius for a request urgency.
func (e *Eligibility) RadiusFor(urgency requestdomain.Urgency) float64 {
	if urgency == requestdomain.UrgencyImmediate {
		return e.cfg.ImmediateRadiusKm
	}
	return e.cfg.ScheduledRadiusKm
}

func (e *Eligibility) findCandidates(ctx context.Context, req *requestdomain.ServiceRequest) ([]providerdomain.Candidate, error) {
	q := providerdomain.CandidateQuery{
		Category:     req.Category,
		Availability: req.Availability(),
	}
	if req.Location == nil {
		return e.candidates.FindCandidates(ctx, q)
	}

	geo := q
	geo.Anchor = req.Location
	geo.RadiusKm = e.RadiusFor(req.Urgency)

	found, err := e.candidates.FindCandidates(ctx, geo)
	if err == nil {
		return found, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !apperr.Is(err, apperr.KindUnavailable) {
		return nil, err
	}

	e.log.Warn("geo candidate query failed, falling back to category match", "requestId", req.ID, "error", err)
	found, err = e.candidates.FindCandidates(ctx, q)
	if err != nil {
		return nil, err
	}
	for i := range found {
		if loc := found[i].Provider.Location; loc != nil && found[i].DistanceKm == nil {
			d := req.Location.DistanceKm(*loc)
			found[i].DistanceKm = &d
		}
	}
	return found, nil
}

// rank drops providers without lead capacity, scores the rest and sorts by
// score descending. Ties keep query order.
func (e *Eligibility) rank(ctx context.Context, candidates []providerdomain.Candidate) []transport.EligibleProvider {
	type scored struct {
		entry transport.EligibleProvider
		keep  bool
	}
	slots := make([]scored, len(candidates))

	var g errgroup.Group
	g.SetLimit(scoringParallelism)
	for i := range candidates {
		i := i
		g.Go(func() error {
			c := &candidates[i]
			p := &c.Provider
			if !e.quota.CanReceiveLead(ctx, p) {
				return nil
			}

			result := e.scorer.Evaluate(ctx, p)
			if p.Identified() {
				if err := e.scorer.Persist(ctx, p.ID, result); err != nil {
					e.log.Warn("score not persisted during eligibility", "providerId", p.ID, "error", err)
				}
			}

			slots[i] = scored{entry: eligibleEntry(c, result.Total), keep: true}
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]transport.EligibleProvider, 0, len(candidates))
	for _, s := range slots {
		if s.keep {
			ranked = append(ranked, s.entry)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func eligibleEntry(c *providerdomain.Candidate, score float64) transport.EligibleProvider {
	p := c.Provider
	return transport.EligibleProvider{
		ProviderID: p.ID,
		Score:      score,
		Profile: transport.ProfileSummary{
			BusinessName:     p.BusinessName,
			Rating:           transport.RatingSummary{Average: p.Rating.Average, Count: p.Rating.Count},
			Categories:       p.Categories,
			SubscriptionPlan: string(p.Subscription.Plan),
			DistanceKm:       c.DistanceKm,
		},
	}
}

func (e *Eligibility) readCache(ctx context.Context, key string) (transport.EligibilityResult, bool) {
	if e.store == nil {
		e.metrics.cacheLookup(CacheMiss)
		return transport.EligibilityResult{}, false
	}

	raw, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.metrics.cacheLookup(CacheError)
		if apperr.Is(err, apperr.KindUnavailable) {
			e.log.Warn("eligibility cache unavailable, treating as miss", "key", key, "error", err)
		} else {
			e.log.Error("eligibility cache read failed", "key", key, "error", err)
		}
		return transport.EligibilityResult{}, false
	}
	if !ok {
		e.metrics.cacheLookup(CacheMiss)
		return transport.EligibilityResult{}, false
	}

	var result transport.EligibilityResult
	if err := json.Unmarshal(raw, &result); err != nil {
		e.metrics.cacheLookup(CacheError)
		e.log.Warn("eligibility cache entry unreadable", "key", key, "error", err)
		return transport.EligibilityResult{}, false
	}
	e.metrics.cacheLookup(CacheHit)
	return result, true
}

func (e *Eligibility) writeCache(ctx context.Context, key string, result transport.EligibilityResult) {
	if e.store == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		e.log.Warn("eligibility result not cacheable", "key", key, "error", err)
		return
	}
	if err := e.store.Set(ctx, key, raw, e.cfg.CacheTTL); err != nil {
		e.log.Warn("eligibility cache write failed", "key", key, "error", err)
	}
}
