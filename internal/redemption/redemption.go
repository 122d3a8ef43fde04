// Package redemption validates reward redemptions.
package redemption

import (
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/tiers"
)

// Outcome is a redemption result plus, on success, the snapshot and ledger
// row the caller must commit together with the reward's usage increment.
type Outcome struct {
	Result      domain.RedemptionResult
	Customer    *domain.Customer
	Transaction *domain.Transaction
}

// Check runs the ordered redemption checks and returns the failure message of
// the first one that fails, or "" if the redemption is allowed.
func Check(c *domain.Customer, r *domain.Reward, now time.Time) string {
	switch {
	case c.Points < r.PointsCost:
		return fmt.Sprintf("Insufficient points. You need %d more points.", r.PointsCost-c.Points)
	case !r.IsActive:
		return "This reward is no longer available."
	case r.ExpiryDate != nil && now.After(*r.ExpiryDate):
		return "This reward has expired."
	case r.UsageLimit != nil && r.UsageCount >= *r.UsageLimit:
		return "This reward has reached its usage limit."
	case r.Conditions.MinTier != "" && !tiers.MeetsMinimum(c.Tier, r.Conditions.MinTier):
		return fmt.Sprintf("This reward requires %s tier or higher.", r.Conditions.MinTier)
	}
	return ""
}

// Redeem validates the redemption and derives its effects. The tier is
// re-resolved against table after the balance drops.
func Redeem(c *domain.Customer, r *domain.Reward, table []domain.TierDefinition, now time.Time) Outcome {
	if msg := Check(c, r, now); msg != "" {
		return Outcome{Result: domain.RedemptionResult{Success: false, Message: msg, RewardID: r.ID}}
	}

	updated := c.Clone()
	updated.Points -= r.PointsCost
	updated.Tier = tiers.Resolve(updated.Points, table)
	balance := updated.Points

	tx := &domain.Transaction{
		CustomerID:     c.ID,
		TenantID:       c.TenantID,
		Type:           domain.TxRedemption,
		PointsRedeemed: r.PointsCost,
		Location:       domain.LocationRedemption,
		PaymentMethod:  domain.PaymentPoints,
		RewardID:       r.ID,
		Timestamp:      now,
	}

	return Outcome{
		Result: domain.RedemptionResult{
			Success:          true,
			Message:          fmt.Sprintf("Successfully redeemed %s!", r.Name),
			NewPointsBalance: &balance,
			RewardID:         r.ID,
		},
		Customer:    updated,
		Transaction: tx,
	}
}
