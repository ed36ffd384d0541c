package domain

import "time"

// Availability narrows candidates to providers working at a given slot.
type Availability struct {
	Weekday time.Weekday
	Time    string
}

// CandidateQuery selects active providers in a category. Anchor and RadiusKm
// add a distance constraint; a nil Anchor means no geographic filter.
type CandidateQuery struct {
	Category     string
	Anchor       *GeoPoint
	RadiusKm     float64
	Availability *Availability
}

// Candidate is a provider matched by a CandidateQuery. DistanceKm is only set
// when the query ran with an anchor.
type Candidate struct {
	Provider   Provider
	DistanceKm *float64
}
