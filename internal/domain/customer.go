package domain

import (
	"time"
)

// Tier is a named loyalty level unlocked by a point threshold.
type Tier string

// Stock tier names, lowest to highest.
const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Customer is the loyalty-facing view of a tenant's user.
//
// Points and Tier are a cache derived from the transaction ledger: Points
// equals the sum of pointsEarned minus the sum of pointsRedeemed, and Tier is
// always the tier resolved from Points. Neither is ever set independently.
type Customer struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Points     int64     `json:"points"`
	Tier       Tier      `json:"tier"`
	TotalSpent float64   `json:"totalSpent"`
	VisitCount int       `json:"visitCount"`
	JoinDate   time.Time `json:"joinDate"`
	LastVisit  time.Time `json:"lastVisit"`

	// Version is bumped on every ledger commit and used for optimistic
	// concurrency control by the repository.
	Version int64 `json:"version"`
}

// Clone returns a copy of the customer snapshot.
func (c *Customer) Clone() *Customer {
	cp := *c
	return &cp
}

// Role is the caller's role as asserted by the upstream auth gateway.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAdmin      Role = "admin"
	RoleManagement Role = "management"
)

// IsStaff reports whether the role may use admin endpoints.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManagement
}
