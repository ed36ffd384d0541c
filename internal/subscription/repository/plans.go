// Package repository provides pgx persistence for subscription plan reference data.
package repository

import (
	"context"
	"errors"
	"fmt"

	"marketplace_backend/internal/providers/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads and seeds subscription_plans.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new plans repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const planColumns = `
	name, display_name, monthly_price::float8, currency, lead_limit,
	visibility_multiplier::float8, commission_rate::float8, benefits, display_order`

func scanPlan(row pgx.Row) (domain.Plan, error) {
	var (
		p    domain.Plan
		name string
	)
	err := row.Scan(&name, &p.DisplayName, &p.MonthlyPrice, &p.Currency, &p.LeadLimit,
		&p.VisibilityMultiplier, &p.CommissionRate, &p.Benefits, &p.DisplayOrder)
	p.Name = domain.PlanName(name)
	return p, err
}

// ListPlans returns active plans in display order.
func (r *Repository) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+planColumns+`
		FROM subscription_plans
		WHERE is_active = true
		ORDER BY display_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := make([]domain.Plan, 0, 3)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// GetPlan returns the active plan named name, or nil when there is none.
func (r *Repository) GetPlan(ctx context.Context, name domain.PlanName) (*domain.Plan, error) {
	p, err := scanPlan(r.pool.QueryRow(ctx, `
		SELECT `+planColumns+`
		FROM subscription_plans
		WHERE name = $1 AND is_active = true
	`, string(name)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &p, nil
}

// InsertMissing inserts plans whose name is not stored yet and reports how
// many rows were added. Existing rows are left untouched.
func (r *Repository) InsertMissing(ctx context.Context, plans []domain.Plan) (int, error) {
	batch := &pgx.Batch{}
	for _, p := range plans {
		batch.Queue(`
			INSERT INTO subscription_plans (
				name, display_name, monthly_price, currency, lead_limit,
				visibility_multiplier, commission_rate, benefits, display_order
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (name) DO NOTHING
		`, string(p.Name), p.DisplayName, p.MonthlyPrice, p.Currency, p.LeadLimit,
			p.VisibilityMultiplier, p.CommissionRate, p.Benefits, p.DisplayOrder)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range plans {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("seed plan: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
