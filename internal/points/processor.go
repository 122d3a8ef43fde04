package points

import (
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/tiers"
)

// Result is an updated customer snapshot and the ledger row that explains it.
// Transaction IDs are left empty for the caller to assign.
type Result struct {
	Customer    *domain.Customer
	Transaction *domain.Transaction
	Calculation domain.PointsCalculation
}

// Process applies a purchase to a customer. It always succeeds; amount and
// field validation happen before this point.
func Process(c *domain.Customer, p domain.Purchase, program *domain.Program, now time.Time) Result {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = now
	}

	calc := Calculate(CalcInput{
		Amount:       p.Amount,
		Tier:         c.Tier,
		Program:      program,
		SpecialOffer: p.SpecialOffer,
		JoinDate:     c.JoinDate,
		Now:          now,
	})

	updated := c.Clone()
	updated.Points += calc.TotalPoints
	updated.TotalSpent += p.Amount
	updated.VisitCount++
	// A backdated purchase never moves the last visit backwards.
	if ts.After(c.LastVisit) {
		updated.LastVisit = ts
	}
	updated.Tier = tiers.Resolve(updated.Points, program.Tiers)

	tx := &domain.Transaction{
		CustomerID:    c.ID,
		TenantID:      c.TenantID,
		Type:          domain.TxPurchase,
		Amount:        p.Amount,
		PointsEarned:  calc.TotalPoints,
		Location:      p.Location,
		PaymentMethod: p.PaymentMethod,
		Items:         p.Items,
		Timestamp:     ts,
	}

	return Result{Customer: updated, Transaction: tx, Calculation: calc}
}

// Award grants a flat bonus with an amount-0 transaction. Spend and visit
// count are untouched; only points and tier move.
func Award(c *domain.Customer, bonus int64, txType domain.TransactionType, location, payment string, program *domain.Program, now time.Time) Result {
	updated := c.Clone()
	updated.Points += bonus
	updated.Tier = tiers.Resolve(updated.Points, program.Tiers)

	tx := &domain.Transaction{
		CustomerID:    c.ID,
		TenantID:      c.TenantID,
		Type:          txType,
		PointsEarned:  bonus,
		Location:      location,
		PaymentMethod: payment,
		Timestamp:     now,
	}

	return Result{
		Customer:    updated,
		Transaction: tx,
		Calculation: domain.PointsCalculation{BonusPoints: bonus, TierMultiplier: 1, TotalPoints: bonus},
	}
}

// Adjust applies an admin point adjustment. A negative delta is clamped to
// the current balance. ok is false when nothing would change.
func Adjust(c *domain.Customer, delta int64, program *domain.Program, now time.Time) (Result, bool) {
	if delta < 0 && -delta > c.Points {
		delta = -c.Points
	}
	if delta == 0 {
		return Result{}, false
	}

	updated := c.Clone()
	updated.Points += delta
	updated.Tier = tiers.Resolve(updated.Points, program.Tiers)

	tx := &domain.Transaction{
		CustomerID:    c.ID,
		TenantID:      c.TenantID,
		Type:          domain.TxAdjustment,
		Location:      domain.LocationAdjustment,
		PaymentMethod: domain.PaymentManual,
		Timestamp:     now,
	}
	if delta > 0 {
		tx.PointsEarned = delta
	} else {
		tx.PointsRedeemed = -delta
	}

	return Result{Customer: updated, Transaction: tx}, true
}

// Expire forfeits the whole balance of a customer who has been inactive for
// longer than the program's pointExpiryDays. ok is false when nothing expires.
func Expire(c *domain.Customer, program *domain.Program, now time.Time) (Result, bool) {
	days := program.Rules.PointExpiryDays
	if days <= 0 || c.Points <= 0 {
		return Result{}, false
	}

	last := c.LastVisit
	if last.IsZero() {
		last = c.JoinDate
	}
	if now.Sub(last) <= time.Duration(days)*24*time.Hour {
		return Result{}, false
	}

	forfeited := c.Points
	updated := c.Clone()
	updated.Points = 0
	updated.Tier = tiers.Resolve(0, program.Tiers)

	tx := &domain.Transaction{
		CustomerID:     c.ID,
		TenantID:       c.TenantID,
		Type:           domain.TxExpiry,
		PointsRedeemed: forfeited,
		Location:       domain.LocationExpiry,
		PaymentMethod:  domain.PaymentSystemExpiry,
		Timestamp:      now,
	}

	return Result{Customer: updated, Transaction: tx}, true
}
