package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
)

// SaveCampaign inserts or updates a campaign.
func (r *SQLRepository) SaveCampaign(ctx context.Context, tenantID string, c *domain.Campaign) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("%w: campaign id is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `
		INSERT INTO campaigns (id, tenant_id, name, description, expression, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	c.TenantID = tenantID
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.Name, c.Description, c.Expression, boolToInt(c.Enabled), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// ListCampaigns returns all campaigns of a tenant, enabled or not.
func (r *SQLRepository) ListCampaigns(ctx context.Context, tenantID string) ([]*domain.Campaign, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, name, description, expression, enabled, created_at, updated_at
		FROM campaigns
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var description sql.NullString
		var enabled int

		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.Name, &description, &c.Expression, &enabled, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}

		c.Description = description.String
		c.Enabled = enabled == 1
		campaigns = append(campaigns, &c)
	}
	return campaigns, rows.Err()
}
