package scheduler

import (
	"context"
	"time"

	"marketplace_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultScoreSweepInterval = 15 * time.Minute
	defaultScoreMaxAge        = 24 * time.Hour
	scoreSweepBatch           = 200
)

// StaleScoreLister finds providers whose cached score is older than a cutoff.
type StaleScoreLister interface {
	ListStaleScores(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// ScoreRefreshEnqueuer queues one score recomputation.
type ScoreRefreshEnqueuer interface {
	EnqueueScoreRefresh(ctx context.Context, providerID uuid.UUID) error
}

// ScoreRefreshSweep periodically queues refreshes for stale provider scores so
// that consistency metrics keep sliding with the 90-day window.
type ScoreRefreshSweep struct {
	lister   StaleScoreLister
	queue    ScoreRefreshEnqueuer
	log      *logger.Logger
	interval time.Duration
	maxAge   time.Duration
}

func NewScoreRefreshSweep(lister StaleScoreLister, queue ScoreRefreshEnqueuer, log *logger.Logger, interval, maxAge time.Duration) *ScoreRefreshSweep {
	if interval <= 0 {
		interval = defaultScoreSweepInterval
	}
	if maxAge <= 0 {
		maxAge = defaultScoreMaxAge
	}
	return &ScoreRefreshSweep{lister: lister, queue: queue, log: log, interval: interval, maxAge: maxAge}
}

func (s *ScoreRefreshSweep) Run(ctx context.Context) {
	if s == nil || s.lister == nil || s.queue == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ScoreRefreshSweep) sweep(ctx context.Context) int {
	ids, err := s.lister.ListStaleScores(ctx, time.Now().Add(-s.maxAge), scoreSweepBatch)
	if err != nil {
		s.log.Warn("stale score listing failed", "error", err)
		return 0
	}

	queued := 0
	for _, id := range ids {
		if err := s.queue.EnqueueScoreRefresh(ctx, id); err != nil {
			s.log.Warn("score refresh enqueue failed", "providerId", id, "error", err)
			continue
		}
		queued++
	}
	if queued > 0 {
		s.log.Info("stale scores queued for refresh", "count", queued)
	}
	return queued
}
