package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
)

// GetProgram retrieves the tenant's program.
func (r *SQLRepository) GetProgram(ctx context.Context, tenantID string) (*domain.Program, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, name, points_per_dollar, tiers, rules, updated_at
		FROM programs
		WHERE tenant_id = ?
	`

	var p domain.Program
	var tiers, rules string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&p.ID, &p.TenantID, &p.Name, &p.PointsPerDollar, &tiers, &rules, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tiers), &p.Tiers); err != nil {
		return nil, fmt.Errorf("failed to parse program tiers: %w", err)
	}
	if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
		return nil, fmt.Errorf("failed to parse program rules: %w", err)
	}
	return &p, nil
}

// SaveProgram inserts or replaces the tenant's program.
func (r *SQLRepository) SaveProgram(ctx context.Context, tenantID string, p *domain.Program) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	tiers, err := json.Marshal(p.Tiers)
	if err != nil {
		return fmt.Errorf("failed to encode tiers: %w", err)
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	query := `
		INSERT INTO programs (tenant_id, id, name, points_per_dollar, tiers, rules, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			name = excluded.name,
			points_per_dollar = excluded.points_per_dollar,
			tiers = excluded.tiers,
			rules = excluded.rules,
			updated_at = excluded.updated_at
	`

	p.TenantID = tenantID
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		tenantID, p.ID, p.Name, p.PointsPerDollar, string(tiers), string(rules), updated.UTC(),
	)
	return err
}

// SaveGeofence inserts or updates a geofence.
func (r *SQLRepository) SaveGeofence(ctx context.Context, tenantID string, fence *domain.Geofence) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if fence.ID == "" {
		return fmt.Errorf("%w: geofence id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO geofences (id, tenant_id, name, latitude, longitude, radius_meters, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			radius_meters = excluded.radius_meters
	`

	fence.TenantID = tenantID
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		fence.ID, tenantID, fence.Name, fence.Latitude, fence.Longitude, fence.RadiusMeters, time.Now().UTC(),
	)
	return err
}

// ListGeofences returns the tenant's participating locations.
func (r *SQLRepository) ListGeofences(ctx context.Context, tenantID string) ([]*domain.Geofence, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, name, latitude, longitude, radius_meters
		FROM geofences
		WHERE tenant_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fences []*domain.Geofence
	for rows.Next() {
		var f domain.Geofence
		if err := rows.Scan(&f.ID, &f.TenantID, &f.Name, &f.Latitude, &f.Longitude, &f.RadiusMeters); err != nil {
			return nil, err
		}
		fences = append(fences, &f)
	}
	return fences, rows.Err()
}
