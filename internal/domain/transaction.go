package domain

import (
	"time"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TxPurchase   TransactionType = "purchase"
	TxRedemption TransactionType = "redemption"
	TxCheckIn    TransactionType = "checkin"
	TxAdjustment TransactionType = "adjustment"
	TxExpiry     TransactionType = "expiry"
)

// Location and payment-method tags written on synthesized transactions.
const (
	LocationCheckIn     = "Check-in Bonus"
	LocationRedemption  = "Reward Redemption"
	LocationAdjustment  = "Admin Adjustment"
	LocationExpiry      = "Points Expired"
	PaymentCheckIn      = "Location Check-in"
	PaymentPoints       = "Points"
	PaymentManual       = "Manual Adjustment"
	PaymentVerified     = "Verified Purchase"
	PaymentSystemExpiry = "System Expiry"
)

// Transaction is an immutable ledger row. Once created it is never mutated
// or deleted.
type Transaction struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customerId"`
	TenantID       string          `json:"tenantId"`
	Type           TransactionType `json:"type"`
	Amount         float64         `json:"amount"`
	PointsEarned   int64           `json:"pointsEarned"`
	PointsRedeemed int64           `json:"pointsRedeemed"`
	Location       string          `json:"location"`
	PaymentMethod  string          `json:"paymentMethod"`
	RewardID       string          `json:"rewardId,omitempty"`
	Items          []Item          `json:"items,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Item is a line item of a purchase.
type Item struct {
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=1"`
}

// Purchase is a purchase event handed to the transaction processor.
type Purchase struct {
	Amount        float64   `json:"amount"`
	Location      string    `json:"location"`
	PaymentMethod string    `json:"paymentMethod"`
	Timestamp     time.Time `json:"timestamp"`
	Items         []Item    `json:"items,omitempty"`

	// SpecialOffer marks the purchase as eligible for the special-offer bonus.
	SpecialOffer bool `json:"specialOffer,omitempty"`
}

// LedgerTotals are the aggregate point movements of a customer's ledger.
type LedgerTotals struct {
	Earned   int64 `json:"earned"`
	Redeemed int64 `json:"redeemed"`
}

// Balance returns earned minus redeemed.
func (t LedgerTotals) Balance() int64 {
	return t.Earned - t.Redeemed
}

// LedgerEntry is the unit of work the repository applies atomically.
// Any field may be nil/empty; at least one must be set.
type LedgerEntry struct {
	// Customer is the updated snapshot. Its Version must equal the stored
	// version; the repository bumps it on commit.
	Customer *Customer

	// Transaction is inserted into the ledger.
	Transaction *Transaction

	// RewardID, when set, increments that reward's usage count, guarded by
	// its usage limit.
	RewardID string

	// Purchase, when set, is transitioned out of pending to its new status.
	Purchase *PendingPurchase
}
