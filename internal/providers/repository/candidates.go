package repository

import (
	"context"
	"fmt"
	"strings"

	"marketplace_backend/internal/providers/domain"
	"marketplace_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

const candidateBaseFilter = `
	p.is_active = true
	AND p.subscription_status = 'active'
	AND EXISTS (
		SELECT 1 FROM provider_categories pc
		WHERE pc.provider_id = p.id AND lower(pc.category) = lower($1)
	)
	AND (
		NOT $2::boolean
		OR (
			(p.working_hours -> $3::text ->> 'available')::boolean IS TRUE
			AND ($4::text = '' OR COALESCE(p.working_hours -> $3::text ->> 'start', '') <= $4::text)
			AND ($4::text = '' OR COALESCE(NULLIF(p.working_hours -> $3::text ->> 'end', ''), '99:99') >= $4::text)
		)
	)`

// FindCandidates returns active providers serving the query's category. With
// an anchor the result is limited to providers within RadiusKm, nearest first;
// without one it falls back to category and subscription only. Failures of the
// distance query come back as KindUnavailable.
func (r *Repository) FindCandidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Candidate, error) {
	withHours := q.Availability != nil
	day, slot := "", ""
	if withHours {
		day = domain.WeekdayKey(q.Availability.Weekday)
		slot = strings.TrimSpace(q.Availability.Time)
	}

	if q.Anchor == nil {
		return r.collect(ctx, false, `
			SELECT `+providerColumns+`
			FROM providers p
			WHERE `+candidateBaseFilter+`
			ORDER BY p.score_total DESC, p.id
		`, q.Category, withHours, day, slot)
	}

	found, err := r.collect(ctx, true, `
		SELECT `+providerColumns+`,
			earth_distance(ll_to_earth($5, $6), ll_to_earth(p.latitude, p.longitude)) / 1000.0 AS dist_km
		FROM providers p
		WHERE `+candidateBaseFilter+`
			AND p.latitude IS NOT NULL AND p.longitude IS NOT NULL
			AND earth_box(ll_to_earth($5, $6), $7 * 1000.0) @> ll_to_earth(p.latitude, p.longitude)
			AND earth_distance(ll_to_earth($5, $6), ll_to_earth(p.latitude, p.longitude)) <= ($7 * 1000.0)
		ORDER BY dist_km ASC, p.id
	`, q.Category, withHours, day, slot, q.Anchor.Lat, q.Anchor.Lon, q.RadiusKm)
	if err != nil {
		return nil, apperr.GeoQueryUnavailable(err)
	}
	return found, nil
}

func (r *Repository) collect(ctx context.Context, withDistance bool, query string, args ...any) ([]domain.Candidate, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]domain.Candidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows, withDistance)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	return candidates, nil
}

func scanCandidate(rows pgx.Rows, withDistance bool) (domain.Candidate, error) {
	if !withDistance {
		p, err := scanProvider(rows)
		return domain.Candidate{Provider: p}, err
	}
	var dist float64
	p, err := scanProvider(rows, &dist)
	if err != nil {
		return domain.Candidate{}, err
	}
	return domain.Candidate{Provider: p, DistanceKm: &dist}, nil
}
