package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/repository"
	"github.com/opensource-finance/magpie/internal/verification"
)

// SubmitInput is a customer-reported purchase awaiting verification.
type SubmitInput struct {
	ItemName      string
	Amount        float64
	Location      string
	PaymentMethod string
}

// SubmitPurchase records a pending purchase for admin review.
func (s *Service) SubmitPurchase(ctx context.Context, tenantID, customerID string, in SubmitInput) (*domain.PendingPurchase, error) {
	if strings.TrimSpace(in.ItemName) == "" || in.Amount <= 0 {
		return nil, fmt.Errorf("%w: itemName and a positive amount are required", repository.ErrInvalidInput)
	}
	if _, err := s.repo.GetCustomer(ctx, tenantID, customerID); err != nil {
		return nil, err
	}

	p := &domain.PendingPurchase{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		CustomerID:    customerID,
		ItemName:      strings.TrimSpace(in.ItemName),
		Amount:        in.Amount,
		Location:      in.Location,
		PaymentMethod: in.PaymentMethod,
		Status:        domain.PurchasePending,
		CreatedAt:     s.now(),
	}
	if err := s.repo.SavePendingPurchase(ctx, tenantID, p); err != nil {
		return nil, err
	}

	s.logger.Info("purchase submitted for verification",
		"tenant_id", tenantID,
		"customer_id", customerID,
		"purchase_id", p.ID,
	)
	return p, nil
}

// PendingPurchases lists submitted purchases, optionally filtered by status.
func (s *Service) PendingPurchases(ctx context.Context, tenantID string, status domain.PurchaseStatus) ([]*domain.PendingPurchase, error) {
	return s.repo.ListPendingPurchases(ctx, tenantID, status)
}

// VerifyOutcome is a committed verification decision. Customer and
// Transaction are set only on approval.
type VerifyOutcome struct {
	Purchase    *domain.PendingPurchase `json:"purchase"`
	Customer    *domain.Customer        `json:"customer,omitempty"`
	Transaction *domain.Transaction     `json:"transaction,omitempty"`
}

// Verify approves or declines a pending purchase. Only one decision can win
// for a purchase; later ones get verification.ErrAlreadyProcessed.
func (s *Service) Verify(ctx context.Context, tenantID, purchaseID string, action domain.VerifyAction, adminID string) (*VerifyOutcome, error) {
	var out *VerifyOutcome
	var subject *domain.Customer
	err := s.retry(ctx, "verify", func() error {
		pending, err := s.repo.GetPendingPurchase(ctx, tenantID, purchaseID)
		if err != nil {
			return fmt.Errorf("purchase %s: %w", purchaseID, err)
		}
		c, p, err := s.loadState(ctx, tenantID, pending.CustomerID)
		if err != nil {
			return err
		}

		decision, err := verification.Verify(pending, action, c, p, adminID, s.now())
		if err != nil {
			return err
		}

		entry := &domain.LedgerEntry{Purchase: decision.Purchase}
		out = &VerifyOutcome{Purchase: decision.Purchase}
		subject = c
		if decision.Points != nil {
			subject = decision.Points.Customer
			entry.Customer = decision.Points.Customer
			entry.Transaction = decision.Points.Transaction
			out.Customer = decision.Points.Customer
			out.Transaction = decision.Points.Transaction
		}
		return s.commit(ctx, tenantID, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase verified",
		"tenant_id", tenantID,
		"purchase_id", purchaseID,
		"status", out.Purchase.Status,
		"admin_id", adminID,
	)
	s.publish(ctx, domain.TopicPurchaseVerified, subject, out.Transaction, adminID, string(out.Purchase.Status))
	return out, nil
}
