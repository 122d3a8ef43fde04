// Package checkin validates location check-ins against tenant geofences.
package checkin

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/geo"
	"github.com/opensource-finance/magpie/internal/points"
)

// Cooldown is the sliding window within which only one check-in counts.
const Cooldown = 24 * time.Hour

// Input is a check-in attempt with everything needed to judge it.
// Recent holds the customer's check-in transactions; older rows are ignored.
type Input struct {
	Customer    *domain.Customer
	Coordinates domain.Coordinates
	Geofences   []*domain.Geofence
	Program     *domain.Program
	Recent      []*domain.Transaction
	Now         time.Time
}

// Outcome is the check-in result plus, on success, the snapshot and ledger
// row to commit.
type Outcome struct {
	Result      domain.CheckInResult
	Customer    *domain.Customer
	Transaction *domain.Transaction
}

func fail(msg string) Outcome {
	return Outcome{Result: domain.CheckInResult{Success: false, Message: msg}}
}

// CheckIn runs the checks in order: fences configured, inside a fence, no
// check-in within the cooldown. On success it awards the program's check-in
// bonus.
func CheckIn(in Input) Outcome {
	if len(in.Geofences) == 0 {
		return fail("No locations configured.")
	}

	fence := geo.FirstContaining(in.Coordinates, in.Geofences)
	if fence == nil {
		return fail("You are not at a participating location.")
	}

	if HasRecent(in.Customer.ID, in.Recent, in.Now) {
		return fail("You have already checked in today.")
	}

	bonus := in.Program.Rules.CheckInBonusPoints
	res := points.Award(in.Customer, bonus, domain.TxCheckIn, domain.LocationCheckIn, domain.PaymentCheckIn, in.Program, in.Now)
	balance := res.Customer.Points

	return Outcome{
		Result: domain.CheckInResult{
			Success:          true,
			Message:          fmt.Sprintf("Check-in successful! You earned %d bonus points.", bonus),
			NewPointsBalance: &balance,
			BonusPoints:      bonus,
			GeofenceID:       fence.ID,
		},
		Customer:    res.Customer,
		Transaction: res.Transaction,
	}
}

// HasRecent reports whether customerID has a check-in at or after now-Cooldown.
func HasRecent(customerID string, txs []*domain.Transaction, now time.Time) bool {
	since := now.Add(-Cooldown)
	return lo.SomeBy(txs, func(tx *domain.Transaction) bool {
		return tx != nil &&
			tx.CustomerID == customerID &&
			IsCheckIn(tx) &&
			!tx.Timestamp.Before(since)
	})
}

// IsCheckIn reports whether tx is a check-in row. Rows imported without a
// type are recognised by their location tag.
func IsCheckIn(tx *domain.Transaction) bool {
	return tx.Type == domain.TxCheckIn || (tx.Type == "" && tx.Location == domain.LocationCheckIn)
}
