// Package domain holds the provider aggregate as seen by matching, scoring
// and subscription. Providers are created and deleted by the account
// subsystem; this service only performs narrow field updates.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a provider's plan.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusInactive  SubscriptionStatus = "inactive"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription tracks plan membership and lead usage within the billing period.
type Subscription struct {
	Plan               PlanName
	Status             SubscriptionStatus
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	LeadsUsed          int
	LastLeadAt         *time.Time
}

// IsActive reports whether the subscription can receive leads at all.
func (s Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// PeriodExpired is true when no period was ever started or the current one has ended.
func (s Subscription) PeriodExpired(now time.Time) bool {
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.Before(now)
}

// Billing holds the commission charged on completed jobs.
type Billing struct {
	CommissionRate float64
}

// Referral tracks both sides of the referral program for one provider.
type Referral struct {
	Code           string
	ReferredBy     *uuid.UUID
	ReferralsCount int
	DiscountMonths int
}

// MaxDiscountMonths caps accrued referral discounts.
const MaxDiscountMonths = 3

// ScoreFactors is the persisted breakdown of the last computed score.
type ScoreFactors struct {
	RatingVolume      float64 `json:"ratingVolume"`
	ConsistencyPoints float64 `json:"consistencyPoints"`
	PlanMultiplier    float64 `json:"planMultiplier"`
}

// Score is the cached ranking score.
type Score struct {
	Total          float64
	LastCalculated *time.Time
	Factors        ScoreFactors
}

// Rating is the review aggregate.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Stats holds activity aggregates maintained by the booking subsystem.
type Stats struct {
	CompletedJobs int
	ResponseRate  float64
}

// NotificationPreferences are the channels a provider opted into.
type NotificationPreferences struct {
	Email bool
	SMS   bool
}

// Provider is a snapshot of a provider record.
type Provider struct {
	ID           uuid.UUID
	BusinessName string
	Email        string
	Phone        string
	IsActive     bool
	Location     *GeoPoint
	Categories   []string
	WorkingHours WorkingHours
	Notify       NotificationPreferences
	Subscription Subscription
	Billing      Billing
	Referral     Referral
	Score        Score
	Rating       Rating
	Stats        Stats
	CreatedAt    time.Time
}


// Identified reports whether the snapshot refers to a stored record.
func (p Provider) Identified() bool {
	return p.ID != uuid.Nil
}

// ProviderRef is either a bare identifier or an already loaded snapshot.
// Callers resolve it once at the entry of an operation.
type ProviderRef struct {
	id       uuid.UUID
	snapshot *Provider
}

// RefByID refers to a provider that still has to be loaded.
func RefByID(id uuid.UUID) ProviderRef {
	return ProviderRef{id: id}
}

// RefOf wraps a loaded snapshot. The snapshot may be transient (zero ID).
func RefOf(p *Provider) ProviderRef {
	if p == nil {
		return ProviderRef{}
	}
	return ProviderRef{id: p.ID, snapshot: p}
}

// ID returns the referenced identifier, uuid.Nil for transient snapshots.
func (r ProviderRef) ID() uuid.UUID {
	return r.id
}

// Resolved returns the snapshot when the reference already carries one.
func (r ProviderRef) Resolved() (*Provider, bool) {
	return r.snapshot, r.snapshot != nil
}
