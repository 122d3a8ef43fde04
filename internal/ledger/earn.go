package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/campaign"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/points"
	"github.com/opensource-finance/magpie/internal/repository"
)

// maxClockSkew is how far a supplied purchase time may run ahead of the clock.
const maxClockSkew = time.Minute

// PurchaseOutcome is a committed purchase.
type PurchaseOutcome struct {
	Customer    *domain.Customer         `json:"customer"`
	Transaction *domain.Transaction      `json:"transaction"`
	Calculation domain.PointsCalculation `json:"calculation"`
	Campaigns   []string                 `json:"campaigns,omitempty"`
}

// RecordPurchase earns points for a purchase. When a campaign engine is
// configured, matching campaigns turn the purchase into a special offer.
func (s *Service) RecordPurchase(ctx context.Context, tenantID, customerID string, purchase domain.Purchase, actorID string) (*PurchaseOutcome, error) {
	if purchase.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", repository.ErrInvalidInput)
	}
	if purchase.Timestamp.After(s.now().Add(maxClockSkew)) {
		return nil, fmt.Errorf("%w: timestamp must not be in the future", repository.ErrInvalidInput)
	}

	var out *PurchaseOutcome
	err := s.retry(ctx, "purchase", func() error {
		c, p, err := s.loadState(ctx, tenantID, customerID)
		if err != nil {
			return err
		}

		now := s.now()
		in := purchase
		var matched []string
		if s.campaigns != nil && !in.SpecialOffer {
			matched, err = s.campaigns.Match(ctx, tenantID, campaign.Input{Customer: c, Purchase: in, Now: now})
			if err != nil {
				s.logger.Warn("campaign evaluation failed", "tenant_id", tenantID, "error", err)
			}
			in.SpecialOffer = len(matched) > 0
		}

		res := points.Process(c, in, p, now)
		if err := s.commit(ctx, tenantID, &domain.LedgerEntry{Customer: res.Customer, Transaction: res.Transaction}); err != nil {
			return err
		}
		out = &PurchaseOutcome{
			Customer:    res.Customer,
			Transaction: res.Transaction,
			Calculation: res.Calculation,
			Campaigns:   matched,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase recorded",
		"tenant_id", tenantID,
		"customer_id", customerID,
		"tx_id", out.Transaction.ID,
		"points_earned", out.Calculation.TotalPoints,
	)
	s.publish(ctx, domain.TopicPointsEarned, out.Customer, out.Transaction, actorID, "")
	return out, nil
}

// AdjustOutcome is a committed admin adjustment. Transaction is nil when the
// adjustment changed nothing.
type AdjustOutcome struct {
	Customer    *domain.Customer    `json:"customer"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// Adjust applies an admin point adjustment. Negative deltas are clamped so
// the balance never goes below zero.
func (s *Service) Adjust(ctx context.Context, tenantID, customerID string, delta int64, reason, actorID string) (*AdjustOutcome, error) {
	var out *AdjustOutcome
	err := s.retry(ctx, "adjust", func() error {
		c, p, err := s.loadState(ctx, tenantID, customerID)
		if err != nil {
			return err
		}

		res, ok := points.Adjust(c, delta, p, s.now())
		if !ok {
			out = &AdjustOutcome{Customer: c}
			return nil
		}
		if err := s.commit(ctx, tenantID, &domain.LedgerEntry{Customer: res.Customer, Transaction: res.Transaction}); err != nil {
			return err
		}
		out = &AdjustOutcome{Customer: res.Customer, Transaction: res.Transaction}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Transaction != nil {
		s.logger.Info("points adjusted",
			"tenant_id", tenantID,
			"customer_id", customerID,
			"actor_id", actorID,
			"delta", out.Transaction.PointsEarned-out.Transaction.PointsRedeemed,
			"reason", reason,
		)
		s.publish(ctx, domain.TopicPointsAdjusted, out.Customer, out.Transaction, actorID, reason)
	}
	return out, nil
}

// Expire forfeits the customer's balance if it has gone stale. It reports
// whether anything expired.
func (s *Service) Expire(ctx context.Context, tenantID, customerID string) (bool, error) {
	var res points.Result
	expired := false
	err := s.retry(ctx, "expire", func() error {
		c, p, err := s.loadState(ctx, tenantID, customerID)
		if err != nil {
			return err
		}

		var ok bool
		res, ok = points.Expire(c, p, s.now())
		if !ok {
			expired = false
			return nil
		}
		if err := s.commit(ctx, tenantID, &domain.LedgerEntry{Customer: res.Customer, Transaction: res.Transaction}); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil || !expired {
		return false, err
	}

	s.logger.Info("points expired",
		"tenant_id", tenantID,
		"customer_id", customerID,
		"points", res.Transaction.PointsRedeemed,
	)
	s.publish(ctx, domain.TopicPointsExpired, res.Customer, res.Transaction, "", "")
	return true, nil
}

// ExpireTenant runs Expire for every customer of a tenant and returns how
// many balances expired. A failure on one customer does not stop the sweep.
func (s *Service) ExpireTenant(ctx context.Context, tenantID string) (int, error) {
	p, err := s.programs.Get(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if p.Rules.PointExpiryDays <= 0 {
		return 0, nil
	}

	customers, err := s.repo.ListCustomers(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range customers {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, ok := points.Expire(c, p, s.now()); !ok {
			continue
		}
		expired, err := s.Expire(ctx, tenantID, c.ID)
		if err != nil {
			s.logger.Error("failed to expire points",
				"tenant_id", tenantID,
				"customer_id", c.ID,
				"error", err,
			)
			continue
		}
		if expired {
			count++
		}
	}
	return count, nil
}
