package transport

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how a notification batch picks its recipients.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeDirected Mode = "directed"
)

// NotificationTypeNewRequest is the notification type sent for a new lead.
const NotificationTypeNewRequest = "NEW_REQUEST"

type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// ProfileSummary is the public slice of a provider shown next to a match.
type ProfileSummary struct {
	BusinessName     string        `json:"businessName,omitempty"`
	Rating           RatingSummary `json:"rating"`
	Categories       []string      `json:"categories,omitempty"`
	SubscriptionPlan string        `json:"subscriptionPlan,omitempty"`
	DistanceKm       *float64      `json:"distanceKm,omitempty"`
}

type EligibleProvider struct {
	ProviderID uuid.UUID      `json:"providerId"`
	Score      float64        `json:"score"`
	Profile    ProfileSummary `json:"profileSummary"`
}

// EligibilityResult is the ranked candidate list for one request. It is also
// the cached value.
type EligibilityResult struct {
	EligibleProviders []EligibleProvider `json:"eligibleProviders"`
	TotalCount        int                `json:"totalCount"`
	CalculatedAt      time.Time          `json:"calculatedAt"`
}

type NotifyRequest struct {
	Mode        string      `json:"mode" validate:"required,notify_mode"`
	ProviderIDs []uuid.UUID `json:"providerIds" validate:"omitempty,max=100"`
}

// NotifyOutcome is the result for one recipient of a batch.
type NotifyOutcome struct {
	ProviderID uuid.UUID `json:"providerId"`
	Notified   bool      `json:"notified"`
	Score      *float64  `json:"score,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type NotifyResult struct {
	RequestID     uuid.UUID       `json:"requestId"`
	Mode          Mode            `json:"mode"`
	TotalNotified int             `json:"totalNotified"`
	TotalFailed   int             `json:"totalFailed"`
	Results       []NotifyOutcome `json:"results"`
}
