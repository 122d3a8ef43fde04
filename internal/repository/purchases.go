package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opensource-finance/magpie/internal/domain"
)

const purchaseColumns = `id, tenant_id, customer_id, item_name, amount, location, payment_method, status, approved_by, approved_at, points_awarded, created_at`

// SavePendingPurchase records a purchase submitted for verification.
// Status transitions go through CommitLedger.
func (r *SQLRepository) SavePendingPurchase(ctx context.Context, tenantID string, p *domain.PendingPurchase) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if p.ID == "" || p.CustomerID == "" {
		return fmt.Errorf("%w: purchase id and customer id are required", ErrInvalidInput)
	}

	query := `INSERT INTO pending_purchases (` + purchaseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	p.TenantID = tenantID
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, tenantID, p.CustomerID, p.ItemName, p.Amount, p.Location, p.PaymentMethod,
		string(p.Status), nullString(p.ApprovedBy), nullTime(p.ApprovedAt), p.PointsAwarded,
		p.CreatedAt.UTC(),
	)
	return err
}

// GetPendingPurchase retrieves a submitted purchase with tenant isolation.
func (r *SQLRepository) GetPendingPurchase(ctx context.Context, tenantID string, purchaseID string) (*domain.PendingPurchase, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + purchaseColumns + ` FROM pending_purchases WHERE tenant_id = ? AND id = ?`

	p, err := scanPurchase(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, purchaseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListPendingPurchases returns submitted purchases in a status, oldest first.
// An empty status lists all of them.
func (r *SQLRepository) ListPendingPurchases(ctx context.Context, tenantID string, status domain.PurchaseStatus) ([]*domain.PendingPurchase, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + purchaseColumns + ` FROM pending_purchases WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []*domain.PendingPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row rowScanner) (*domain.PendingPurchase, error) {
	var p domain.PendingPurchase
	var status string
	var approvedBy sql.NullString
	var approvedAt sql.NullTime

	if err := row.Scan(
		&p.ID, &p.TenantID, &p.CustomerID, &p.ItemName, &p.Amount, &p.Location, &p.PaymentMethod,
		&status, &approvedBy, &approvedAt, &p.PointsAwarded, &p.CreatedAt,
	); err != nil {
		return nil, err
	}

	p.Status = domain.PurchaseStatus(status)
	p.ApprovedBy = approvedBy.String
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	return &p, nil
}
