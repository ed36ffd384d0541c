// Package repository provides pgx persistence for service requests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	providerdomain "marketplace_backend/internal/providers/domain"
	"marketplace_backend/internal/requests/domain"
	"marketplace_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestNotFoundMsg = "service request not found"

// Repository provides database operations for service requests.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new requests repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID loads a request with its selected and eligible providers.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	var (
		req           domain.ServiceRequest
		urgency       string
		visibility    string
		lat, lon      *float64
		city, address *string
		prefDate      *time.Time
		prefTime      *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, title, category, urgency, latitude, longitude, city, address,
			visibility, preferred_date, preferred_time, created_at
		FROM service_requests
		WHERE id = $1
	`, id).Scan(
		&req.ID, &req.ClientID, &req.Title, &req.Category, &urgency, &lat, &lon, &city, &address,
		&visibility, &prefDate, &prefTime, &req.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(requestNotFoundMsg)
		}
		return nil, fmt.Errorf("get service request: %w", err)
	}

	req.Urgency = domain.Urgency(urgency)
	req.Visibility = domain.Visibility(visibility)
	if lat != nil && lon != nil {
		req.Location = &providerdomain.GeoPoint{Lat: *lat, Lon: *lon}
	}
	if city != nil {
		req.City = *city
	}
	if address != nil {
		req.Address = *address
	}
	if prefDate != nil {
		req.Scheduling = &domain.Scheduling{PreferredDate: *prefDate}
		if prefTime != nil {
			req.Scheduling.PreferredTime = *prefTime
		}
	}

	if req.SelectedProviders, err = r.listSelected(ctx, id); err != nil {
		return nil, err
	}
	if req.EligibleProviders, err = r.listEligible(ctx, id); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *Repository) listSelected(ctx context.Context, requestID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id FROM service_request_selected_providers
		WHERE request_id = $1
		ORDER BY position, provider_id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list selected providers: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) listEligible(ctx context.Context, requestID uuid.UUID) ([]domain.EligibleRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, score, notified, notified_at
		FROM service_request_eligible_providers
		WHERE request_id = $1
		ORDER BY created_at
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list eligible providers: %w", err)
	}
	defer rows.Close()

	records := make([]domain.EligibleRecord, 0)
	for rows.Next() {
		var rec domain.EligibleRecord
		if err := rows.Scan(&rec.ProviderID, &rec.Score, &rec.Notified, &rec.NotifiedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertNotified records that providerID was notified about requestID. A
// second call for the same pair refreshes score and timestamp.
func (r *Repository) UpsertNotified(ctx context.Context, requestID, providerID uuid.UUID, score float64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO service_request_eligible_providers (request_id, provider_id, score, notified, notified_at)
		VALUES ($1, $2, $3, true, $4)
		ON CONFLICT (request_id, provider_id) DO UPDATE
		SET score = EXCLUDED.score,
			notified = true,
			notified_at = EXCLUDED.notified_at
	`, requestID, providerID, score, at)
	if err != nil {
		return fmt.Errorf("record notified provider: %w", err)
	}
	return nil
}
