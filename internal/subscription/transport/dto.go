// Package transport defines the subscription module's request and response shapes.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// Charge is the monthly amount due for a provider.
type Charge struct {
	Plan     string  `json:"plan"`
	Currency string  `json:"currency"`
	Base     float64 `json:"base"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// QuotaStatus summarises lead usage for the current billing period.
// Remaining is -1 for unlimited plans.
type QuotaStatus struct {
	ProviderID     uuid.UUID  `json:"providerId"`
	Plan           string     `json:"plan"`
	Status         string     `json:"status"`
	LeadLimit      int        `json:"leadLimit"`
	LeadsUsed      int        `json:"leadsUsed"`
	Remaining      int        `json:"remaining"`
	PeriodStart    *time.Time `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time `json:"periodEnd,omitempty"`
	CanReceiveLead bool       `json:"canReceiveLead"`
}

type ChangePlanRequest struct {
	Plan string `json:"plan" validate:"required,plan_name"`
}

type ApplyReferralRequest struct {
	Code string `json:"code" validate:"required,min=3,max=64"`
}

type RedeemReferralRequest struct {
	Code string `json:"code" validate:"required,min=3,max=64"`
}

type ReferralResponse struct {
	ReferrerID *uuid.UUID `json:"referrerId"`
}

type RenewalResponse struct {
	ProviderID uuid.UUID `json:"providerId"`
	Charge     Charge    `json:"charge"`
}
