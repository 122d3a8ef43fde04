package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
)

const rewardColumns = `id, tenant_id, name, description, points_cost, category, is_active, usage_limit, usage_count, expiry_date, min_tier`

// SaveReward inserts or updates a reward. The usage count is only ever
// advanced by CommitLedger, so an update leaves it untouched.
func (r *SQLRepository) SaveReward(ctx context.Context, tenantID string, reward *domain.Reward) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if reward.ID == "" {
		return fmt.Errorf("%w: reward id is required", ErrInvalidInput)
	}

	var usageLimit sql.NullInt64
	if reward.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: *reward.UsageLimit, Valid: true}
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO rewards (
			id, tenant_id, name, description, points_cost, category, is_active,
			usage_limit, usage_count, expiry_date, min_tier, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			points_cost = excluded.points_cost,
			category = excluded.category,
			is_active = excluded.is_active,
			usage_limit = excluded.usage_limit,
			expiry_date = excluded.expiry_date,
			min_tier = excluded.min_tier,
			updated_at = excluded.updated_at
	`

	reward.TenantID = tenantID
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		reward.ID, tenantID, reward.Name, reward.Description, reward.PointsCost,
		reward.Category, boolToInt(reward.IsActive), usageLimit, reward.UsageCount,
		nullTime(reward.ExpiryDate), nullString(string(reward.Conditions.MinTier)),
		now, now,
	)
	return err
}

// GetReward retrieves a reward with tenant isolation.
func (r *SQLRepository) GetReward(ctx context.Context, tenantID string, rewardID string) (*domain.Reward, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE tenant_id = ? AND id = ?`

	reward, err := scanReward(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, rewardID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return reward, err
}

// ListRewards returns the tenant's reward catalog ordered by cost.
func (r *SQLRepository) ListRewards(ctx context.Context, tenantID string) ([]*domain.Reward, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE tenant_id = ? ORDER BY points_cost, name`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rewards []*domain.Reward
	for rows.Next() {
		reward, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}
	return rewards, rows.Err()
}

func scanReward(row rowScanner) (*domain.Reward, error) {
	var rw domain.Reward
	var description, category, minTier sql.NullString
	var active int
	var usageLimit sql.NullInt64
	var expiry sql.NullTime

	if err := row.Scan(
		&rw.ID, &rw.TenantID, &rw.Name, &description, &rw.PointsCost, &category,
		&active, &usageLimit, &rw.UsageCount, &expiry, &minTier,
	); err != nil {
		return nil, err
	}

	rw.Description = description.String
	rw.Category = category.String
	rw.IsActive = active == 1
	if usageLimit.Valid {
		limit := usageLimit.Int64
		rw.UsageLimit = &limit
	}
	if expiry.Valid {
		t := expiry.Time
		rw.ExpiryDate = &t
	}
	rw.Conditions.MinTier = domain.Tier(minTier.String)
	return &rw, nil
}
