package domain

import "time"

// PurchaseStatus is the verification state of a submitted purchase.
// pending is the only non-terminal state.
type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchaseApproved PurchaseStatus = "approved"
	PurchaseDeclined PurchaseStatus = "declined"
)

// VerifyAction is an admin decision on a pending purchase.
type VerifyAction string

const (
	ActionApprove VerifyAction = "approve"
	ActionDecline VerifyAction = "decline"
)

// PendingPurchase is a customer-submitted purchase awaiting admin verification.
type PendingPurchase struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenantId"`
	CustomerID    string         `json:"customerId"`
	ItemName      string         `json:"itemName"`
	Amount        float64        `json:"amount"`
	Location      string         `json:"location"`
	PaymentMethod string         `json:"paymentMethod"`
	Status        PurchaseStatus `json:"status"`
	ApprovedBy    string         `json:"approvedBy,omitempty"`
	ApprovedAt    *time.Time     `json:"approvedAt,omitempty"`
	PointsAwarded int64          `json:"pointsAwarded"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Campaign is an admin-defined CEL expression that marks matching purchases
// as special offers.
type Campaign struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// AuditEntry records a loyalty event for the audit trail.
type AuditEntry struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	Action     string         `json:"action"`
	CustomerID string         `json:"customerId,omitempty"`
	ActorID    string         `json:"actorId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
