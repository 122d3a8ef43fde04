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

const transactionColumns = `id, tenant_id, customer_id, type, amount, points_earned, points_redeemed, location, payment_method, reward_id, items, timestamp`

// CommitLedger applies a ledger entry in one database transaction. Each
// guarded update must match exactly one row or the whole entry is rolled
// back with ErrConflict.
func (r *SQLRepository) CommitLedger(ctx context.Context, tenantID string, entry *domain.LedgerEntry) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if entry == nil || (entry.Customer == nil && entry.Transaction == nil && entry.RewardID == "" && entry.Purchase == nil) {
		return fmt.Errorf("%w: empty ledger entry", ErrInvalidInput)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer sqlTx.Rollback()

	now := time.Now().UTC()

	if c := entry.Customer; c != nil {
		query := `
			UPDATE customers
			SET points = ?, tier = ?, total_spent = ?, visit_count = ?, last_visit = ?, version = version + 1
			WHERE tenant_id = ? AND id = ? AND version = ?
		`
		res, err := sqlTx.ExecContext(ctx, r.rebind(query),
			c.Points, string(c.Tier), c.TotalSpent, c.VisitCount, c.LastVisit.UTC(),
			tenantID, c.ID, c.Version,
		)
		if err := expectOneRow(res, err, "customer "+c.ID); err != nil {
			return err
		}
	}

	if entry.RewardID != "" {
		query := `
			UPDATE rewards
			SET usage_count = usage_count + 1, updated_at = ?
			WHERE tenant_id = ? AND id = ? AND is_active = 1
			  AND (usage_limit IS NULL OR usage_count < usage_limit)
		`
		res, err := sqlTx.ExecContext(ctx, r.rebind(query), now, tenantID, entry.RewardID)
		if err := expectOneRow(res, err, "reward "+entry.RewardID); err != nil {
			return err
		}
	}

	if p := entry.Purchase; p != nil {
		query := `
			UPDATE pending_purchases
			SET status = ?, approved_by = ?, approved_at = ?, points_awarded = ?
			WHERE tenant_id = ? AND id = ? AND status = ?
		`
		res, err := sqlTx.ExecContext(ctx, r.rebind(query),
			string(p.Status), nullString(p.ApprovedBy), nullTime(p.ApprovedAt), p.PointsAwarded,
			tenantID, p.ID, string(domain.PurchasePending),
		)
		if err := expectOneRow(res, err, "purchase "+p.ID); err != nil {
			return err
		}
	}

	if tx := entry.Transaction; tx != nil {
		if tx.ID == "" {
			return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
		}
		items, err := json.Marshal(tx.Items)
		if err != nil {
			return fmt.Errorf("failed to encode items: %w", err)
		}

		query := `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err = sqlTx.ExecContext(ctx, r.rebind(query),
			tx.ID, tenantID, tx.CustomerID, string(tx.Type), tx.Amount,
			tx.PointsEarned, tx.PointsRedeemed, tx.Location, tx.PaymentMethod,
			nullString(tx.RewardID), string(items), tx.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		tx.TenantID = tenantID
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}

	if entry.Customer != nil {
		entry.Customer.Version++
	}
	return nil
}

func expectOneRow(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: %s", ErrConflict, what)
	}
	return nil
}

// GetTransaction retrieves a transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.Transaction, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tenant_id = ? AND id = ?`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions returns a customer's ledger, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, tenantID string, customerID string) ([]*domain.Transaction, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = ? AND customer_id = ?
		ORDER BY timestamp DESC, id
	`
	return r.queryTransactions(ctx, query, tenantID, customerID)
}

// ListTransactionsSince returns a customer's transactions of one type with
// timestamp >= since, newest first.
func (r *SQLRepository) ListTransactionsSince(ctx context.Context, tenantID string, customerID string, txType domain.TransactionType, since time.Time) ([]*domain.Transaction, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE tenant_id = ? AND customer_id = ? AND type = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id
	`
	return r.queryTransactions(ctx, query, tenantID, customerID, string(txType), since.UTC())
}

// GetLedgerTotals sums a customer's earned and redeemed points.
func (r *SQLRepository) GetLedgerTotals(ctx context.Context, tenantID string, customerID string) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals
	if err := requireTenant(tenantID); err != nil {
		return totals, err
	}

	query := `
		SELECT COALESCE(SUM(points_earned), 0), COALESCE(SUM(points_redeemed), 0)
		FROM transactions
		WHERE tenant_id = ? AND customer_id = ?
	`
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID).Scan(&totals.Earned, &totals.Redeemed)
	return totals, err
}

func (r *SQLRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var txType string
	var rewardID, items sql.NullString

	if err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.CustomerID, &txType, &tx.Amount,
		&tx.PointsEarned, &tx.PointsRedeemed, &tx.Location, &tx.PaymentMethod,
		&rewardID, &items, &tx.Timestamp,
	); err != nil {
		return nil, err
	}

	tx.Type = domain.TransactionType(txType)
	tx.RewardID = rewardID.String
	if items.Valid && items.String != "" && items.String != "null" {
		if err := json.Unmarshal([]byte(items.String), &tx.Items); err != nil {
			return nil, fmt.Errorf("failed to parse items of transaction %s: %w", tx.ID, err)
		}
	}
	return &tx, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
