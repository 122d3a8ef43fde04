// Package points computes earned points and derives the ledger rows and
// customer snapshots that result from purchases, bonuses, admin adjustments
// and expiry. Nothing here persists; callers commit the results.
package points

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/tiers"
)

// specialOfferRate is the share of base points added for special offers.
var specialOfferRate = decimal.NewFromFloat(0.5)

// CalcInput is everything the calculator needs for one purchase.
type CalcInput struct {
	Amount       float64
	Tier         domain.Tier
	Program      *domain.Program
	SpecialOffer bool
	JoinDate     time.Time
	Now          time.Time
}

// Calculate returns the point breakdown of a purchase.
//
// base = floor(amount * pointsPerDollar)
// bonus = floor(base * 0.5) for special offers, plus the birthday bonus when
// the join month equals the current month
// total = floor((base + bonus) * tier multiplier)
func Calculate(in CalcInput) domain.PointsCalculation {
	base := decimal.NewFromFloat(in.Amount).
		Mul(decimal.NewFromFloat(in.Program.PointsPerDollar)).
		Floor()

	multiplier := tiers.Multiplier(in.Tier, in.Program.Tiers)

	bonus := decimal.Zero
	if in.SpecialOffer {
		bonus = base.Mul(specialOfferRate).Floor()
	}
	if IsBirthdayMonth(in.JoinDate, in.Now) {
		bonus = bonus.Add(decimal.NewFromInt(in.Program.Rules.BirthdayBonus))
	}

	total := base.Add(bonus).Mul(decimal.NewFromFloat(multiplier)).Floor()

	return domain.PointsCalculation{
		BasePoints:     base.IntPart(),
		BonusPoints:    bonus.IntPart(),
		TierMultiplier: multiplier,
		TotalPoints:    total.IntPart(),
	}
}

// IsBirthdayMonth compares month-of-year only, in UTC. A zero join date
// never matches.
func IsBirthdayMonth(joinDate, now time.Time) bool {
	if joinDate.IsZero() {
		return false
	}
	return joinDate.UTC().Month() == now.UTC().Month()
}
