package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ResetPeriodIfExpired starts a new billing period and clears usage, but only
// when the stored period is missing or ended before now. Returns whether a
// reset happened.
func (r *Repository) ResetPeriodIfExpired(ctx context.Context, id uuid.UUID, now, periodEnd time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET current_period_start = $2,
			current_period_end = $3,
			leads_used = 0,
			updated_at = now()
		WHERE id = $1
			AND (current_period_end IS NULL OR current_period_end < $2)
	`, id, now, periodEnd)
	if err != nil {
		return false, fmt.Errorf("reset billing period: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementLeadUsage adds one lead unconditionally.
func (r *Repository) IncrementLeadUsage(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET leads_used = leads_used + 1,
			last_lead_at = $2,
			updated_at = now()
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("increment lead usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(providerNotFoundMsg)
	}
	return nil
}

// ConsumeLead adds one lead only if the provider is still under limit.
// A negative limit means unlimited. The check and increment are one statement.
func (r *Repository) ConsumeLead(ctx context.Context, id uuid.UUID, limit int, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET leads_used = leads_used + 1,
			last_lead_at = $3,
			updated_at = now()
		WHERE id = $1
			AND subscription_status = 'active'
			AND ($2 < 0 OR leads_used < $2)
	`, id, limit, now)
	if err != nil {
		return false, fmt.Errorf("consume lead: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyRenewal rolls the billing period forward and, when a discount was
// used for the closing month, spends one discount month. Both happen in one
// transaction.
func (r *Repository) ApplyRenewal(ctx context.Context, id uuid.UUID, spendDiscount bool, periodStart, periodEnd time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin renewal: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT true FROM providers WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(providerNotFoundMsg)
		}
		return fmt.Errorf("lock provider: %w", err)
	}

	if spendDiscount {
		if _, err := tx.Exec(ctx, `
			UPDATE providers SET discount_months = GREATEST(discount_months - 1, 0) WHERE id = $1
		`, id); err != nil {
			return fmt.Errorf("spend discount month: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE providers
		SET current_period_start = $2,
			current_period_end = $3,
			leads_used = 0,
			updated_at = now()
		WHERE id = $1
	`, id, periodStart, periodEnd); err != nil {
		return fmt.Errorf("roll billing period: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit renewal: %w", err)
	}
	return nil
}

// SetPlan moves the provider to plan, activates the subscription and copies
// the plan's commission rate, in a single update.
func (r *Repository) SetPlan(ctx context.Context, id uuid.UUID, plan domain.PlanName, commissionRate float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET subscription_plan = $2,
			subscription_status = 'active',
			commission_rate = $3,
			updated_at = now()
		WHERE id = $1
	`, id, string(plan), commissionRate)
	if err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(providerNotFoundMsg)
	}
	return nil
}

// CreditReferral finds the owner of code, bumps its referral count and grants
// one discount month up to the cap. Returns nil when no provider owns code.
func (r *Repository) CreditReferral(ctx context.Context, code string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE providers
		SET referrals_count = referrals_count + 1,
			discount_months = LEAST(discount_months + 1, $2),
			updated_at = now()
		WHERE id = (
			SELECT id FROM providers WHERE referral_code = $1 ORDER BY created_at LIMIT 1
		)
		RETURNING id
	`, code, domain.MaxDiscountMonths).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("credit referral: %w", err)
	}
	return &id, nil
}

// FindByReferralCode returns the id of the provider owning code, or nil.
func (r *Repository) FindByReferralCode(ctx context.Context, code string) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM providers WHERE referral_code = $1 ORDER BY created_at LIMIT 1
	`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find referral owner: %w", err)
	}
	return &id, nil
}

// SetReferredBy records who referred the provider. Returns false when the
// provider already has a referrer.
func (r *Repository) SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE providers
		SET referred_by = $2, updated_at = now()
		WHERE id = $1 AND referred_by IS NULL
	`, id, referrerID)
	if err != nil {
		return false, fmt.Errorf("set referred by: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
