package ledger

import (
	"context"
	"fmt"

	"github.com/opensource-finance/magpie/internal/checkin"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/limiter"
	"github.com/opensource-finance/magpie/internal/redemption"
)

// Redeem exchanges points for a reward. Business-rule failures come back as
// an unsuccessful result, not an error.
func (s *Service) Redeem(ctx context.Context, tenantID, customerID, rewardID string) (domain.RedemptionResult, error) {
	if err := s.allow(ctx, tenantID, customerID, limiter.ActionRedeem); err != nil {
		return domain.RedemptionResult{}, err
	}

	var out redemption.Outcome
	err := s.retry(ctx, "redeem", func() error {
		c, p, err := s.loadState(ctx, tenantID, customerID)
		if err != nil {
			return err
		}
		reward, err := s.repo.GetReward(ctx, tenantID, rewardID)
		if err != nil {
			return fmt.Errorf("reward %s: %w", rewardID, err)
		}

		out = redemption.Redeem(c, reward, p.Tiers, s.now())
		if !out.Result.Success {
			return nil
		}
		return s.commit(ctx, tenantID, &domain.LedgerEntry{
			Customer:    out.Customer,
			Transaction: out.Transaction,
			RewardID:    reward.ID,
		})
	})
	if err != nil {
		return domain.RedemptionResult{}, err
	}

	if !out.Result.Success {
		s.logger.Debug("redemption rejected",
			"tenant_id", tenantID,
			"customer_id", customerID,
			"reward_id", rewardID,
			"reason", out.Result.Message,
		)
		return out.Result, nil
	}

	s.logger.Info("reward redeemed",
		"tenant_id", tenantID,
		"customer_id", customerID,
		"reward_id", rewardID,
		"tx_id", out.Transaction.ID,
	)
	s.publish(ctx, domain.TopicRewardRedeemed, out.Customer, out.Transaction, customerID, out.Result.Message)
	return out.Result, nil
}

// CheckIn awards the check-in bonus when the customer is inside a tenant
// geofence and has not checked in during the cooldown window.
func (s *Service) CheckIn(ctx context.Context, tenantID, customerID string, at domain.Coordinates) (domain.CheckInResult, error) {
	if err := s.allow(ctx, tenantID, customerID, limiter.ActionCheckIn); err != nil {
		return domain.CheckInResult{}, err
	}

	var out checkin.Outcome
	err := s.retry(ctx, "checkin", func() error {
		c, p, err := s.loadState(ctx, tenantID, customerID)
		if err != nil {
			return err
		}
		fences, err := s.repo.ListGeofences(ctx, tenantID)
		if err != nil {
			return err
		}

		now := s.now()
		recent, err := s.repo.ListTransactionsSince(ctx, tenantID, customerID, domain.TxCheckIn, now.Add(-checkin.Cooldown))
		if err != nil {
			return err
		}

		out = checkin.CheckIn(checkin.Input{
			Customer:    c,
			Coordinates: at,
			Geofences:   fences,
			Program:     p,
			Recent:      recent,
			Now:         now,
		})
		if !out.Result.Success {
			return nil
		}
		return s.commit(ctx, tenantID, &domain.LedgerEntry{Customer: out.Customer, Transaction: out.Transaction})
	})
	if err != nil {
		return domain.CheckInResult{}, err
	}

	if out.Result.Success {
		s.logger.Info("check-in completed",
			"tenant_id", tenantID,
			"customer_id", customerID,
			"geofence_id", out.Result.GeofenceID,
		)
		s.publish(ctx, domain.TopicCheckInCompleted, out.Customer, out.Transaction, customerID, out.Result.Message)
	}
	return out.Result, nil
}
