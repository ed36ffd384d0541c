// Package repository provides pgx persistence for provider records.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const providerNotFoundMsg = "provider not found"

// Repository provides database operations for providers.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new providers repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const providerColumns = `
	p.id, p.business_name, COALESCE(p.email, ''), COALESCE(p.phone, ''), p.is_active,
	p.latitude, p.longitude, p.working_hours, p.notify_email, p.notify_sms,
	COALESCE((SELECT array_agg(pc.category ORDER BY pc.category) FROM provider_categories pc WHERE pc.provider_id = p.id), '{}'),
	p.subscription_plan, p.subscription_status, p.current_period_start, p.current_period_end,
	p.leads_used, p.last_lead_at, p.commission_rate::float8,
	COALESCE(p.referral_code, ''), p.referred_by, p.referrals_count, p.discount_months,
	p.score_total, p.score_rating_volume, p.score_consistency, p.score_plan_multiplier, p.score_last_calculated,
	p.rating_average, p.rating_count, p.completed_jobs, p.response_rate,
	p.created_at`

func scanProvider(row pgx.Row, extra ...any) (domain.Provider, error) {
	var (
		p            domain.Provider
		lat, lon     *float64
		hoursJSON    []byte
		plan, status string
	)
	dest := []any{
		&p.ID, &p.BusinessName, &p.Email, &p.Phone, &p.IsActive,
		&lat, &lon, &hoursJSON, &p.Notify.Email, &p.Notify.SMS,
		&p.Categories,
		&plan, &status, &p.Subscription.CurrentPeriodStart, &p.Subscription.CurrentPeriodEnd,
		&p.Subscription.LeadsUsed, &p.Subscription.LastLeadAt, &p.Billing.CommissionRate,
		&p.Referral.Code, &p.Referral.ReferredBy, &p.Referral.ReferralsCount, &p.Referral.DiscountMonths,
		&p.Score.Total, &p.Score.Factors.RatingVolume, &p.Score.Factors.ConsistencyPoints, &p.Score.Factors.PlanMultiplier, &p.Score.LastCalculated,
		&p.Rating.Average, &p.Rating.Count, &p.Stats.CompletedJobs, &p.Stats.ResponseRate,
		&p.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Provider{}, err
	}

	p.Subscription.Plan = domain.PlanName(plan)
	p.Subscription.Status = domain.SubscriptionStatus(status)
	if lat != nil && lon != nil {
		p.Location = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &p.WorkingHours); err != nil {
			return domain.Provider{}, fmt.Errorf("decode working hours: %w", err)
		}
	}
	return p, nil
}

// GetByID loads one provider.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers p WHERE p.id = $1`

	p, err := scanProvider(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(providerNotFoundMsg)
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return &p, nil
}

// ListByIDs loads the providers that exist among ids. Missing ids are skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Provider, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers p WHERE p.id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("list providers by id: %w", err)
	}
	defer rows.Close()

	providers := make([]domain.Provider, 0, len(ids))
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list providers by id: %w", err)
	}
	return providers, nil
}

// ListActiveIDs pages through active providers ordered by id, starting after cursor.
func (r *Repository) ListActiveIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM providers
		WHERE is_active = true AND subscription_status = 'active' AND id > $1
		ORDER BY id
		LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list active providers: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveScore persists a computed score and its breakdown.
func (r *Repository) SaveScore(ctx context.Context, id uuid.UUID, score domain.Score) error {
	calculated := time.Now().UTC()
	if score.LastCalculated != nil {
		calculated = *score.LastCalculated
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET score_total = GREATEST($2, 0),
			score_rating_volume = $3,
			score_consistency = $4,
			score_plan_multiplier = $5,
			score_last_calculated = $6,
			updated_at = now()
		WHERE id = $1
	`, id, score.Total, score.Factors.RatingVolume, score.Factors.ConsistencyPoints, score.Factors.PlanMultiplier, calculated)
	if err != nil {
		return fmt.Errorf("save provider score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(providerNotFoundMsg)
	}
	return nil
}

// ListStaleScores returns active providers whose score was never calculated or
// was last calculated before the cutoff, oldest first.
func (r *Repository) ListStaleScores(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM providers
		WHERE is_active = true
			AND (score_last_calculated IS NULL OR score_last_calculated < $1)
		ORDER BY score_last_calculated NULLS FIRST
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale scores: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
