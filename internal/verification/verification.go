// Package verification drives the pending -> approved | declined lifecycle of
// customer-submitted purchases.
package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/points"
)

var (
	// ErrAlreadyProcessed is returned when the purchase is no longer pending.
	ErrAlreadyProcessed = errors.New("purchase already processed")

	// ErrUnknownAction is returned for actions other than approve and decline.
	ErrUnknownAction = errors.New("unknown verification action")
)

// Outcome is the transitioned purchase and, on approval, the points result
// to commit alongside it.
type Outcome struct {
	Purchase *domain.PendingPurchase
	Points   *points.Result
}

// Verify applies an admin decision. Approval runs the purchase through the
// points processor; decline changes only the purchase status.
func Verify(p *domain.PendingPurchase, action domain.VerifyAction, c *domain.Customer, program *domain.Program, adminID string, now time.Time) (Outcome, error) {
	if p.Status != domain.PurchasePending {
		return Outcome{}, ErrAlreadyProcessed
	}

	updated := *p
	switch action {
	case domain.ActionApprove:
		res := points.Process(c, domain.Purchase{
			Amount:        p.Amount,
			Location:      p.Location,
			PaymentMethod: domain.PaymentVerified,
			Timestamp:     now,
			Items:         []domain.Item{{Name: p.ItemName, Price: p.Amount, Quantity: 1}},
		}, program, now)

		approvedAt := now
		updated.Status = domain.PurchaseApproved
		updated.ApprovedBy = adminID
		updated.ApprovedAt = &approvedAt
		updated.PointsAwarded = res.Calculation.TotalPoints
		return Outcome{Purchase: &updated, Points: &res}, nil

	case domain.ActionDecline:
		updated.Status = domain.PurchaseDeclined
		return Outcome{Purchase: &updated}, nil
	}

	return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}
