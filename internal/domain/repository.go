// Package domain defines the core interfaces and types for Magpie.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Customer operations
	CreateCustomer(ctx context.Context, tenantID string, c *Customer) error
	GetCustomer(ctx context.Context, tenantID string, customerID string) (*Customer, error)
	ListCustomers(ctx context.Context, tenantID string) ([]*Customer, error)

	// Ledger operations
	CommitLedger(ctx context.Context, tenantID string, entry *LedgerEntry) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, tenantID string, customerID string) ([]*Transaction, error)
	ListTransactionsSince(ctx context.Context, tenantID string, customerID string, txType TransactionType, since time.Time) ([]*Transaction, error)
	GetLedgerTotals(ctx context.Context, tenantID string, customerID string) (LedgerTotals, error)

	// Reward operations
	SaveReward(ctx context.Context, tenantID string, reward *Reward) error
	GetReward(ctx context.Context, tenantID string, rewardID string) (*Reward, error)
	ListRewards(ctx context.Context, tenantID string) ([]*Reward, error)

	// Program operations
	GetProgram(ctx context.Context, tenantID string) (*Program, error)
	SaveProgram(ctx context.Context, tenantID string, program *Program) error
	ListTenants(ctx context.Context) ([]string, error)

	// Geofence operations
	SaveGeofence(ctx context.Context, tenantID string, fence *Geofence) error
	ListGeofences(ctx context.Context, tenantID string) ([]*Geofence, error)

	// Purchase verification operations
	SavePendingPurchase(ctx context.Context, tenantID string, p *PendingPurchase) error
	GetPendingPurchase(ctx context.Context, tenantID string, purchaseID string) (*PendingPurchase, error)
	ListPendingPurchases(ctx context.Context, tenantID string, status PurchaseStatus) ([]*PendingPurchase, error)

	// Campaign operations
	SaveCampaign(ctx context.Context, tenantID string, campaign *Campaign) error
	ListCampaigns(ctx context.Context, tenantID string) ([]*Campaign, error)

	// Audit operations
	SaveAuditEntry(ctx context.Context, tenantID string, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, tenantID string, customerID string) ([]*AuditEntry, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
