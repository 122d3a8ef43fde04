package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/magpie/internal/domain"
)

const customerColumns = `id, tenant_id, name, email, points, tier, total_spent, visit_count, join_date, last_visit, version`

// CreateCustomer inserts a new customer at version 1.
func (r *SQLRepository) CreateCustomer(ctx context.Context, tenantID string, c *domain.Customer) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	c.TenantID = tenantID
	c.Version = 1

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		c.ID, tenantID, c.Name, c.Email,
		c.Points, string(c.Tier), c.TotalSpent, c.VisitCount,
		c.JoinDate.UTC(), c.LastVisit.UTC(), c.Version,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: customer %s already exists", ErrConflict, c.ID)
	}
	return err
}

// GetCustomer retrieves a customer with tenant isolation.
func (r *SQLRepository) GetCustomer(ctx context.Context, tenantID string, customerID string) (*domain.Customer, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = ? AND id = ?`

	c, err := scanCustomer(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCustomers returns all customers of a tenant ordered by join date.
func (r *SQLRepository) ListCustomers(ctx context.Context, tenantID string) ([]*domain.Customer, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE tenant_id = ? ORDER BY join_date, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var tier string
	if err := row.Scan(
		&c.ID, &c.TenantID, &c.Name, &c.Email,
		&c.Points, &tier, &c.TotalSpent, &c.VisitCount,
		&c.JoinDate, &c.LastVisit, &c.Version,
	); err != nil {
		return nil, err
	}
	c.Tier = domain.Tier(tier)
	return &c, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
