package repository

// Schema definitions for the Magpie database.
// Compatible with both SQLite and PostgreSQL.

const schemaCustomers = `
CREATE TABLE IF NOT EXISTS customers (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    points BIGINT NOT NULL DEFAULT 0,
    tier TEXT NOT NULL,
    total_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
    visit_count BIGINT NOT NULL DEFAULT 0,
    join_date TIMESTAMP NOT NULL,
    last_visit TIMESTAMP NOT NULL,
    version BIGINT NOT NULL DEFAULT 1,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_customers_last_visit ON customers(tenant_id, last_visit);
`

// Transactions are append-only; nothing updates or deletes them.
const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_earned BIGINT NOT NULL DEFAULT 0,
    points_redeemed BIGINT NOT NULL DEFAULT 0,
    location TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    reward_id TEXT,
    items TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(tenant_id, customer_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(tenant_id, customer_id, type, timestamp);
`

const schemaRewards = `
CREATE TABLE IF NOT EXISTS rewards (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    points_cost BIGINT NOT NULL,
    category TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    usage_limit BIGINT,
    usage_count BIGINT NOT NULL DEFAULT 0,
    expiry_date TIMESTAMP,
    min_tier TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_rewards_active ON rewards(tenant_id, is_active);
`

// Tiers and rules are stored as JSON documents; one program per tenant.
const schemaPrograms = `
CREATE TABLE IF NOT EXISTS programs (
    tenant_id TEXT PRIMARY KEY,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    points_per_dollar DOUBLE PRECISION NOT NULL,
    tiers TEXT NOT NULL,
    rules TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaGeofences = `
CREATE TABLE IF NOT EXISTS geofences (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    radius_meters DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
`

const schemaPendingPurchases = `
CREATE TABLE IF NOT EXISTS pending_purchases (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    item_name TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    location TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    status TEXT NOT NULL,
    approved_by TEXT,
    approved_at TIMESTAMP,
    points_awarded BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_pending_purchases_status ON pending_purchases(tenant_id, status, created_at);
`

const schemaCampaigns = `
CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
`

const schemaAuditLog = `
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    action TEXT NOT NULL,
    customer_id TEXT,
    actor_id TEXT,
    details TEXT,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_customer ON audit_log(tenant_id, customer_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCustomers,
		schemaTransactions,
		schemaRewards,
		schemaPrograms,
		schemaGeofences,
		schemaPendingPurchases,
		schemaCampaigns,
		schemaAuditLog,
	}
}
