package service

import (
	"math"

	"marketplace_backend/internal/providers/domain"
)

const (
	// maxVolumeFactor caps ln(jobs+1) before it is mapped onto 0-5.
	maxVolumeFactor = 3.0

	// NeutralConsistency is awarded when there is no recent completed work.
	NeutralConsistency = 2.5

	maxConsistency = 5.0

	completionWeight  = 0.30
	punctualityWeight = 0.25
	qualityWeight     = 0.25
	responseWeight    = 0.20
)

// Metrics are the trailing-window activity aggregates for one provider.
type Metrics struct {
	CompletedBookings int
	// TerminalBookings counts completed and cancelled bookings.
	TerminalBookings int
	// ScheduledCompleted counts completed bookings that had a scheduled start.
	ScheduledCompleted int
	// OnTimeStarts counts those that started within 30 minutes of schedule.
	OnTimeStarts int
	ReviewCount  int
	// RatingStdDev is the population standard deviation of review ratings.
	RatingStdDev float64
	Proposals    int
	// FastResponses counts proposals answered within 120 minutes.
	FastResponses int
}

// Breakdown is the per-factor contribution to a score.
type Breakdown struct {
	RatingVolume      float64 `json:"ratingVolume"`
	ConsistencyPoints float64 `json:"consistencyPoints"`
	PlanMultiplier    float64 `json:"planMultiplier"`
}

// Details echoes the inputs that drove the score.
type Details struct {
	AverageRating    float64 `json:"averageRating"`
	CompletedJobs    int     `json:"completedJobs"`
	ResponseRate     float64 `json:"responseRate"`
	SubscriptionPlan string  `json:"subscriptionPlan,omitempty"`
}

// Result is a computed score. Total and Breakdown are rounded for display;
// the unrounded values are kept for persistence.
type Result struct {
	Total     float64   `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
	Details   Details   `json:"details"`

	raw Breakdown
	sum float64
}

// Score converts the unrounded result into the persisted form.
func (r Result) Score() domain.Score {
	return domain.Score{
		Total: r.sum,
		Factors: domain.ScoreFactors{
			RatingVolume:      r.raw.RatingVolume,
			ConsistencyPoints: r.raw.ConsistencyPoints,
			PlanMultiplier:    r.raw.PlanMultiplier,
		},
	}
}

// Inputs is everything Compute needs; nothing here touches storage.
type Inputs struct {
	AverageRating float64
	CompletedJobs int
	ResponseRate  float64
	Consistency   float64
	Plan          domain.Plan
}

// Compute is (ratingVolume + consistency) * plan multiplier, never negative.
func Compute(in Inputs) Result {
	ratingVolume := RatingVolume(in.AverageRating, in.CompletedJobs)
	multiplier := in.Plan.VisibilityMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	total := math.Max(0, (ratingVolume+in.Consistency)*multiplier)
	raw := Breakdown{
		RatingVolume:      ratingVolume,
		ConsistencyPoints: in.Consistency,
		PlanMultiplier:    multiplier,
	}

	return Result{
		Total: round2(total),
		Breakdown: Breakdown{
			RatingVolume:      round2(ratingVolume),
			ConsistencyPoints: round2(in.Consistency),
			PlanMultiplier:    multiplier,
		},
		Details: Details{
			AverageRating:    in.AverageRating,
			CompletedJobs:    in.CompletedJobs,
			ResponseRate:     in.ResponseRate,
			SubscriptionPlan: string(in.Plan.Name),
		},
		raw: raw,
		sum: total,
	}
}

// RatingVolume is averageRating scaled by min(ln(jobs+1), 3)/3*5.
func RatingVolume(averageRating float64, completedJobs int) float64 {
	if averageRating <= 0 || completedJobs <= 0 {
		return 0
	}
	volume := math.Min(math.Log(float64(completedJobs)+1), maxVolumeFactor)
	return averageRating * (volume / maxVolumeFactor * 5)
}

// Consistency turns trailing-window metrics into 0-5 points. Providers with
// no completed bookings in the window get NeutralConsistency.
func Consistency(m Metrics) float64 {
	if m.CompletedBookings == 0 {
		return NeutralConsistency
	}

	points := ratio(m.CompletedBookings, m.TerminalBookings)*completionWeight*5 +
		ratio(m.OnTimeStarts, m.ScheduledCompleted)*punctualityWeight*5 +
		qualityConsistency(m)*qualityWeight*5 +
		ratio(m.FastResponses, m.Proposals)*responseWeight*5

	return math.Min(points, maxConsistency)
}

func qualityConsistency(m Metrics) float64 {
	if m.ReviewCount == 0 {
		return 1
	}
	return 1 - math.Min(1, m.RatingStdDev/2)
}

// ratio is part/whole, 1 when there is nothing to measure.
func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 1
	}
	return math.Min(1, float64(part)/float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
