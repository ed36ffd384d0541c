// Package domain holds the service request as read by matching. Requests are
// owned by the request subsystem; matching only appends notification records.
package domain

import (
	"time"

	providerdomain "marketplace_backend/internal/providers/domain"

	"github.com/google/uuid"
)

// Urgency decides the search radius.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyScheduled Urgency = "scheduled"
)

// Visibility decides how candidates are chosen.
type Visibility string

const (
	VisibilityAuto     Visibility = "auto"
	VisibilityDirected Visibility = "directed"
)

// Scheduling is the client's preferred slot. PreferredTime is HH:MM or empty.
type Scheduling struct {
	PreferredDate time.Time
	PreferredTime string
}

// EligibleRecord marks a provider surfaced for a request.
type EligibleRecord struct {
	ProviderID uuid.UUID
	Score      float64
	Notified   bool
	NotifiedAt *time.Time
}

// ServiceRequest is a snapshot of a client's request.
type ServiceRequest struct {
	ID                uuid.UUID
	ClientID          uuid.UUID
	Title             string
	Category          string
	Urgency           Urgency
	Location          *providerdomain.GeoPoint
	City              string
	Address           string
	Visibility        Visibility
	Scheduling        *Scheduling
	SelectedProviders []uuid.UUID
	EligibleProviders []EligibleRecord
	CreatedAt         time.Time
}

// Availability converts the preferred slot into a working-hours constraint.
// Returns nil when the request has no preferred date.
func (r ServiceRequest) Availability() *providerdomain.Availability {
	if r.Scheduling == nil || r.Scheduling.PreferredDate.IsZero() {
		return nil
	}
	return &providerdomain.Availability{
		Weekday: r.Scheduling.PreferredDate.Weekday(),
		Time:    r.Scheduling.PreferredTime,
	}
}
