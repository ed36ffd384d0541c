// Package repository reads the activity aggregates behind consistency scoring.
package repository

import (
	"context"
	"fmt"
	"time"

	"marketplace_backend/internal/scoring/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	punctualityToleranceSeconds = 30 * 60
	fastResponseMinutes         = 120
)

// Repository provides consistency metric queries.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new scoring metrics repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ConsistencyMetrics aggregates bookings, reviews and proposals created since since.
func (r *Repository) ConsistencyMetrics(ctx context.Context, providerID uuid.UUID, since time.Time) (service.Metrics, error) {
	var m service.Metrics
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bookings b
				WHERE b.provider_id = $1 AND b.created_at >= $2 AND b.status = 'completed'),
			(SELECT COUNT(*) FROM bookings b
				WHERE b.provider_id = $1 AND b.created_at >= $2 AND b.status IN ('completed', 'cancelled')),
			(SELECT COUNT(*) FROM bookings b
				WHERE b.provider_id = $1 AND b.created_at >= $2 AND b.status = 'completed'
					AND b.scheduled_at IS NOT NULL),
			(SELECT COUNT(*) FROM bookings b
				WHERE b.provider_id = $1 AND b.created_at >= $2 AND b.status = 'completed'
					AND b.scheduled_at IS NOT NULL AND b.started_at IS NOT NULL
					AND abs(extract(epoch FROM (b.started_at - b.scheduled_at))) <= $3),
			(SELECT COUNT(*) FROM reviews rv
				WHERE rv.provider_id = $1 AND rv.created_at >= $2),
			(SELECT COALESCE(stddev_pop(rv.rating_overall), 0)::float8 FROM reviews rv
				WHERE rv.provider_id = $1 AND rv.created_at >= $2),
			(SELECT COUNT(*) FROM proposals pr
				WHERE pr.provider_id = $1 AND pr.created_at >= $2),
			(SELECT COUNT(*) FROM proposals pr
				WHERE pr.provider_id = $1 AND pr.created_at >= $2
					AND pr.response_time_minutes IS NOT NULL AND pr.response_time_minutes <= $4)
	`, providerID, since, punctualityToleranceSeconds, fastResponseMinutes).Scan(
		&m.CompletedBookings,
		&m.TerminalBookings,
		&m.ScheduledCompleted,
		&m.OnTimeStarts,
		&m.ReviewCount,
		&m.RatingStdDev,
		&m.Proposals,
		&m.FastResponses,
	)
	if err != nil {
		return service.Metrics{}, fmt.Errorf("consistency metrics: %w", err)
	}
	return m, nil
}
