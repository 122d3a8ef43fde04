package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/magpie/internal/behavior"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/repository"
	"github.com/opensource-finance/magpie/internal/tiers"
)

// EnrollInput describes a new loyalty member.
type EnrollInput struct {
	ID       string
	Name     string
	Email    string
	JoinDate time.Time
}

// Enroll creates a customer with an empty balance at the program's entry tier.
func (s *Service) Enroll(ctx context.Context, tenantID string, in EnrollInput, actorID string) (*domain.Customer, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", repository.ErrInvalidInput)
	}

	p, err := s.programs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	c := &domain.Customer{
		ID:       in.ID,
		TenantID: tenantID,
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Tier:     tiers.Resolve(0, p.Tiers),
		JoinDate: in.JoinDate,
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.JoinDate.IsZero() {
		c.JoinDate = s.now()
	}

	if err := s.repo.CreateCustomer(ctx, tenantID, c); err != nil {
		return nil, err
	}

	s.logger.Info("customer enrolled", "tenant_id", tenantID, "customer_id", c.ID)
	s.publish(ctx, domain.TopicCustomerEnrolled, c, nil, actorID, "")
	return c, nil
}

// GetCustomer returns a customer snapshot with its tier resolved against the
// current program.
func (s *Service) GetCustomer(ctx context.Context, tenantID, customerID string) (*domain.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	p, err := s.programs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.Tier = tiers.Resolve(c.Points, p.Tiers)
	return c, nil
}

// ListCustomers returns every customer of the tenant with resolved tiers.
func (s *Service) ListCustomers(ctx context.Context, tenantID string) ([]*domain.Customer, error) {
	customers, err := s.repo.ListCustomers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	p, err := s.programs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		c.Tier = tiers.Resolve(c.Points, p.Tiers)
	}
	return customers, nil
}

// Transactions returns the customer's ledger, newest first.
func (s *Service) Transactions(ctx context.Context, tenantID, customerID string) ([]*domain.Transaction, error) {
	if _, err := s.repo.GetCustomer(ctx, tenantID, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, tenantID, customerID)
}

// TierProgress reports how far the customer is from the next tier.
func (s *Service) TierProgress(ctx context.Context, tenantID, customerID string) (domain.TierProgress, error) {
	c, p, err := s.loadState(ctx, tenantID, customerID)
	if err != nil {
		return domain.TierProgress{}, err
	}
	return tiers.Progress(c.Points, p.Tiers), nil
}

// Analyze runs the behavior analysis over the customer's ledger.
func (s *Service) Analyze(ctx context.Context, tenantID, customerID string) (domain.BehaviorAnalysis, error) {
	c, err := s.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return domain.BehaviorAnalysis{}, err
	}
	txs, err := s.repo.ListTransactions(ctx, tenantID, customerID)
	if err != nil {
		return domain.BehaviorAnalysis{}, err
	}
	return behavior.Analyze(c, txs, s.now()), nil
}

// ReconcileResult reports a cache rebuild from the ledger.
type ReconcileResult struct {
	Customer *domain.Customer    `json:"customer"`
	Totals   domain.LedgerTotals `json:"totals"`
	Previous int64               `json:"previousPoints"`
	Changed  bool                `json:"changed"`
}

// Reconcile recomputes the cached balance and tier from the ledger sums and
// the current program. The ledger wins whenever the two disagree.
func (s *Service) Reconcile(ctx context.Context, tenantID, customerID string) (ReconcileResult, error) {
	var result ReconcileResult
	err := s.retry(ctx, "reconcile", func() error {
		c, p, err := s.loadStored(ctx, tenantID, customerID)
		if err != nil {
			return err
		}
		totals, err := s.repo.GetLedgerTotals(ctx, tenantID, customerID)
		if err != nil {
			return err
		}

		balance := totals.Balance()
		tier := tiers.Resolve(balance, p.Tiers)
		result = ReconcileResult{Customer: c, Totals: totals, Previous: c.Points}
		if c.Points == balance && c.Tier == tier {
			return nil
		}

		updated := c.Clone()
		updated.Points = balance
		updated.Tier = tier
		if err := s.commit(ctx, tenantID, &domain.LedgerEntry{Customer: updated}); err != nil {
			return err
		}
		result.Customer = updated
		result.Changed = true
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	if result.Changed {
		s.logger.Warn("customer balance reconciled",
			"tenant_id", tenantID,
			"customer_id", customerID,
			"previous_points", result.Previous,
			"points", result.Customer.Points,
		)
	}
	return result, nil
}
