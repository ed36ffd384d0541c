package service

import (
	"math"
	"testing"

	"marketplace_backend/internal/providers/domain"

	"github.com/stretchr/testify/assert"
)

func plan(name domain.PlanName) domain.Plan {
	p, _ := domain.DefaultPlan(name)
	return p
}

func TestRatingVolume(t *testing.T) {
	assert.Equal(t, 0.0, RatingVolume(4.5, 0))
	assert.Equal(t, 0.0, RatingVolume(0, 50))

	// ln(e^3) = 3 hits the cap: full 5x multiplier.
	capped := int(math.Ceil(math.Exp(3)))
	assert.InDelta(t, 4.0*5, RatingVolume(4.0, capped), 1e-9)
	assert.InDelta(t, 4.0*5, RatingVolume(4.0, 10_000), 1e-9)

	assert.InDelta(t, 4.0*math.Log(2)/3*5, RatingVolume(4.0, 1), 1e-9)
}

func TestRatingVolumeIsMonotonicInJobs(t *testing.T) {
	prev := -1.0
	for jobs := 0; jobs <= 200; jobs++ {
		got := RatingVolume(4.2, jobs)
		assert.GreaterOrEqual(t, got, prev, "jobs=%d", jobs)
		assert.LessOrEqual(t, got, 4.2*5+1e-9)
		prev = got
	}
}

func TestConsistencyNeutralWithoutCompletedWork(t *testing.T) {
	assert.Equal(t, NeutralConsistency, Consistency(Metrics{}))
	assert.Equal(t, NeutralConsistency, Consistency(Metrics{TerminalBookings: 4, Proposals: 3}))
}

func TestConsistencyPerfectRecord(t *testing.T) {
	m := Metrics{
		CompletedBookings:  10,
		TerminalBookings:   10,
		ScheduledCompleted: 10,
		OnTimeStarts:       10,
		ReviewCount:        8,
		RatingStdDev:       0,
		Proposals:          12,
		FastResponses:      12,
	}
	assert.InDelta(t, 5.0, Consistency(m), 1e-9)
}

func TestConsistencyWeights(t *testing.T) {
	m := Metrics{
		CompletedBookings:  5,
		TerminalBookings:   10, // 0.5 completion
		ScheduledCompleted: 4,
		OnTimeStarts:       1, // 0.25 punctuality
		ReviewCount:        3,
		RatingStdDev:       1, // 0.5 quality
		Proposals:          0, // no proposals counts as 1
	}
	want := 0.5*0.30*5 + 0.25*0.25*5 + 0.5*0.25*5 + 1*0.20*5
	assert.InDelta(t, want, Consistency(m), 1e-9)
}

func TestConsistencyQualityFloorsAtZero(t *testing.T) {
	m := Metrics{CompletedBookings: 1, TerminalBookings: 1, ReviewCount: 2, RatingStdDev: 3}
	want := 1*0.30*5 + 1*0.25*5 + 0 + 1*0.20*5
	assert.InDelta(t, want, Consistency(m), 1e-9)
}

func TestComputeProBeatsFree(t *testing.T) {
	in := Inputs{AverageRating: 4.0, CompletedJobs: 12, Consistency: 3.1}

	in.Plan = plan(domain.PlanFree)
	free := Compute(in)
	in.Plan = plan(domain.PlanPro)
	pro := Compute(in)

	assert.Greater(t, pro.Total, free.Total)
	assert.Equal(t, 1.5, pro.Breakdown.PlanMultiplier)
	assert.InDelta(t, free.Score().Total*1.5, pro.Score().Total, 1e-9)
}

func TestComputeNewProviderStillRanks(t *testing.T) {
	r := Compute(Inputs{Consistency: NeutralConsistency, Plan: plan(domain.PlanBasic)})
	assert.Equal(t, 3.0, r.Total)
	assert.Equal(t, "basic", r.Details.SubscriptionPlan)
}

func TestComputeRoundsForDisplayOnly(t *testing.T) {
	r := Compute(Inputs{AverageRating: 4.37, CompletedJobs: 3, Consistency: 2.333, Plan: plan(domain.PlanBasic)})

	assert.Equal(t, math.Round(r.Score().Total*100)/100, r.Total)
	assert.Equal(t, 2.33, r.Breakdown.ConsistencyPoints)
	assert.Equal(t, 2.333, r.Score().Factors.ConsistencyPoints)
}
