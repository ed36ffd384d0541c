package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"marketplace_backend/internal/providers/domain"
	requestdomain "marketplace_backend/internal/requests/domain"
	scoringservice "marketplace_backend/internal/scoring/service"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
)

var origin = domain.GeoPoint{Lat: 40.7128, Lon: -74.0060}

// north returns a point roughly km kilometres north of origin.
func north(km float64) *domain.GeoPoint {
	return &domain.GeoPoint{Lat: origin.Lat + km/111.195, Lon: origin.Lon}
}

func newProvider(name string, plan domain.PlanName, used int, loc *domain.GeoPoint) domain.Provider {
	end := time.Now().Add(10 * 24 * time.Hour)
	return domain.Provider{
		ID:           uuid.New(),
		BusinessName: name,
		IsActive:     true,
		Location:     loc,
		Categories:   []string{"Plumbing"},
		Subscription: domain.Subscription{
			Plan:             plan,
			Status:           domain.StatusActive,
			CurrentPeriodEnd: &end,
			LeadsUsed:        used,
		},
	}
}

type fakeRequests struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*requestdomain.ServiceRequest
	notified map[uuid.UUID][]uuid.UUID
	failFor  map[uuid.UUID]bool
}

func newFakeRequests(reqs ...*requestdomain.ServiceRequest) *fakeRequests {
	f := &fakeRequests{
		byID:     map[uuid.UUID]*requestdomain.ServiceRequest{},
		notified: map[uuid.UUID][]uuid.UUID{},
		failFor:  map[uuid.UUID]bool{},
	}
	for _, r := range reqs {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRequests) GetByID(_ context.Context, id uuid.UUID) (*requestdomain.ServiceRequest, error) {
	r, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("request not found")
	}
	return r, nil
}

func (f *fakeRequests) UpsertNotified(_ context.Context, requestID, providerID uuid.UUID, _ float64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[providerID] {
		return errors.New("write failed")
	}
	for _, id := range f.notified[requestID] {
		if id == providerID {
			return nil
		}
	}
	f.notified[requestID] = append(f.notified[requestID], providerID)
	return nil
}

// geoFinder filters an in-memory provider list the way the SQL query does.
type geoFinder struct {
	mu        sync.Mutex
	providers []domain.Provider
	geoErr    error
	queries   []domain.CandidateQuery
}

func (f *geoFinder) FindCandidates(_ context.Context, q domain.CandidateQuery) ([]domain.Candidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if q.Anchor != nil && f.geoErr != nil {
		return nil, f.geoErr
	}

	var out []domain.Candidate
	for _, p := range f.providers {
		if !p.IsActive || !p.Subscription.IsActive() || !hasCategory(p, q.Category) {
			continue
		}
		if q.Availability != nil && !availableAt(p.WorkingHours, q.Availability.Weekday, q.Availability.Time) {
			continue
		}
		c := domain.Candidate{Provider: p}
		if q.Anchor != nil {
			if p.Location == nil {
				continue
			}
			d := q.Anchor.DistanceKm(*p.Location)
			if d > q.RadiusKm {
				continue
			}
			c.DistanceKm = &d
		}
		out = append(out, c)
	}
	return out, nil
}

func hasCategory(p domain.Provider, category string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// availableAt mirrors the working-hours clause of the candidate query:
// HH:MM values compare as strings.
func availableAt(hours domain.WorkingHours, weekday time.Weekday, hhmm string) bool {
	day, ok := hours[domain.WeekdayKey(weekday)]
	if !ok || !day.Available {
		return false
	}
	if hhmm == "" {
		return true
	}
	if day.Start != "" && hhmm < day.Start {
		return false
	}
	if day.End != "" && hhmm > day.End {
		return false
	}
	return true
}

func (f *geoFinder) lastQuery() domain.CandidateQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

// fakeQuota mirrors the quota manager over in-memory usage counters.
type fakeQuota struct {
	mu         sync.Mutex
	plans      map[uuid.UUID]domain.PlanName
	used       map[uuid.UUID]int
	increments map[uuid.UUID]int
	consumeErr error
}

func newFakeQuota(providers ...domain.Provider) *fakeQuota {
	q := &fakeQuota{
		plans:      map[uuid.UUID]domain.PlanName{},
		used:       map[uuid.UUID]int{},
		increments: map[uuid.UUID]int{},
	}
	for _, p := range providers {
		q.plans[p.ID] = p.Subscription.Plan
		q.used[p.ID] = p.Subscription.LeadsUsed
	}
	return q
}

func (q *fakeQuota) CanReceiveLead(_ context.Context, p *domain.Provider) bool {
	if !p.Subscription.IsActive() {
		return false
	}
	plan, _ := domain.DefaultPlan(p.Subscription.Plan)
	return plan.HasCapacity(p.Subscription.LeadsUsed)
}

func (q *fakeQuota) ConsumeLead(_ context.Context, id uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumeErr != nil {
		return false, q.consumeErr
	}
	plan, _ := domain.DefaultPlan(q.plans[id])
	if !plan.HasCapacity(q.used[id]) {
		return false, nil
	}
	q.used[id]++
	q.increments[id]++
	return true, nil
}

func (q *fakeQuota) IncrementLeadUsage(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[id]++
	q.increments[id]++
	return nil
}

func (q *fakeQuota) incrementsFor(id uuid.UUID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.increments[id]
}

// fixedScorer returns preset totals keyed by provider id.
type fixedScorer struct {
	mu        sync.Mutex
	scores    map[uuid.UUID]float64
	persisted map[uuid.UUID]float64
}

func newFixedScorer() *fixedScorer {
	return &fixedScorer{scores: map[uuid.UUID]float64{}, persisted: map[uuid.UUID]float64{}}
}

func (s *fixedScorer) Evaluate(_ context.Context, p *domain.Provider) scoringservice.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scoringservice.Result{Total: s.scores[p.ID]}
}

func (s *fixedScorer) Persist(_ context.Context, id uuid.UUID, r scoringservice.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted[id] = r.Total
	return nil
}

type fakeChannel struct {
	mu      sync.Mutex
	sent    []uuid.UUID
	failFor map[uuid.UUID]bool
	last    struct{ notificationType, priority string }
}

func (c *fakeChannel) SendProviderNotification(_ context.Context, providerID, _ uuid.UUID, notificationType, priority string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFor[providerID] {
		return errors.New("smtp timeout")
	}
	c.sent = append(c.sent, providerID)
	c.last.notificationType = notificationType
	c.last.priority = priority
	return nil
}

type recordingEmitter struct {
	mu      sync.Mutex
	users   []uuid.UUID
	payload map[string]any
}

func (e *recordingEmitter) EmitCountersUpdate(userIDs []uuid.UUID, payload map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users = append(e.users, userIDs...)
	e.payload = payload
}
