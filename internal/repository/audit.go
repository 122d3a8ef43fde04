package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/opensource-finance/magpie/internal/domain"
)

// SaveAuditEntry appends to the audit log.
func (r *SQLRepository) SaveAuditEntry(ctx context.Context, tenantID string, entry *domain.AuditEntry) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: audit entry id is required", ErrInvalidInput)
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, tenant_id, action, customer_id, actor_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	entry.TenantID = tenantID
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		entry.ID, tenantID, entry.Action, nullString(entry.CustomerID), nullString(entry.ActorID),
		string(details), entry.Timestamp.UTC(),
	)
	return err
}

// ListAuditEntries returns audit entries newest first. An empty customerID
// lists the whole tenant.
func (r *SQLRepository) ListAuditEntries(ctx context.Context, tenantID string, customerID string) ([]*domain.AuditEntry, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT id, tenant_id, action, customer_id, actor_id, details, timestamp FROM audit_log WHERE tenant_id = ?`
	args := []any{tenantID}
	if customerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, customerID)
	}
	query += ` ORDER BY timestamp DESC, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var customer, actor, details sql.NullString

		if err := rows.Scan(&e.ID, &e.TenantID, &e.Action, &customer, &actor, &details, &e.Timestamp); err != nil {
			return nil, err
		}

		e.CustomerID = customer.String
		e.ActorID = actor.String
		if details.Valid && details.String != "" {
			json.Unmarshal([]byte(details.String), &e.Details)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
