// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"marketplace_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Request Domain Events
// =============================================================================

// ServiceRequestPublished is published by the request subsystem once a request
// is open for providers. It triggers provider notification.
type ServiceRequestPublished struct {
	BaseEvent
	RequestID           uuid.UUID   `json:"requestId"`
	Visibility          string      `json:"visibility"`
	SelectedProviderIDs []uuid.UUID `json:"selectedProviderIds,omitempty"`
}

func (e ServiceRequestPublished) EventName() string { return "requests.request.published" }

// =============================================================================
// Matching Domain Events
// =============================================================================

// ProvidersNotified is published after a notification batch completes.
type ProvidersNotified struct {
	BaseEvent
	RequestID     uuid.UUID `json:"requestId"`
	Mode          string    `json:"mode"`
	TotalNotified int       `json:"totalNotified"`
	TotalFailed   int       `json:"totalFailed"`
}

func (e ProvidersNotified) EventName() string { return "matching.providers.notified" }

// =============================================================================
// Activity Domain Events (inputs to scoring)
// =============================================================================

// ReviewSubmitted is published when a client reviews a provider.
type ReviewSubmitted struct {
	BaseEvent
	ReviewID   uuid.UUID `json:"reviewId"`
	ProviderID uuid.UUID `json:"providerId"`
	Rating     float64   `json:"rating"`
}

func (e ReviewSubmitted) EventName() string { return "reviews.review.submitted" }

// BookingCompleted is published when a booking reaches the completed state.
type BookingCompleted struct {
	BaseEvent
	BookingID  uuid.UUID `json:"bookingId"`
	ProviderID uuid.UUID `json:"providerId"`
}

func (e BookingCompleted) EventName() string { return "bookings.booking.completed" }

// =============================================================================
// Subscription Domain Events
// =============================================================================

// SubscriptionPlanChanged is published after a provider moves to another plan.
type SubscriptionPlanChanged struct {
	BaseEvent
	ProviderID uuid.UUID `json:"providerId"`
	Plan       string    `json:"plan"`
}

func (e SubscriptionPlanChanged) EventName() string { return "subscription.plan.changed" }

// ReferralApplied is published when a referral code credits its owner.
type ReferralApplied struct {
	BaseEvent
	ReferrerID uuid.UUID  `json:"referrerId"`
	ReferredID *uuid.UUID `json:"referredId,omitempty"`
}

func (e ReferralApplied) EventName() string { return "subscription.referral.applied" }
