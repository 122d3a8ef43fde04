// Package ledger applies loyalty engine outcomes to the transaction ledger.
//
// Every operation loads a customer snapshot, runs a pure engine against it,
// and commits the resulting snapshot and ledger row through
// Repository.CommitLedger. A stale snapshot surfaces as ErrConflict and the
// whole operation is re-evaluated with exponential backoff.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/opensource-finance/magpie/internal/bus"
	"github.com/opensource-finance/magpie/internal/campaign"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/limiter"
	"github.com/opensource-finance/magpie/internal/program"
	"github.com/opensource-finance/magpie/internal/repository"
	"github.com/opensource-finance/magpie/internal/tiers"
)

// ErrRateLimited is returned when a customer exceeds an action limit.
var ErrRateLimited = limiter.ErrRateLimited

// DefaultMaxAttempts bounds how often a conflicting operation is re-evaluated.
const DefaultMaxAttempts = 5

// Service is the write path of the loyalty engine.
type Service struct {
	repo      domain.Repository
	programs  *program.Service
	campaigns *campaign.Engine
	limiter   *limiter.Limiter
	bus       domain.EventBus

	now         func() time.Time
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCampaigns marks purchases matching an enabled campaign as special offers.
func WithCampaigns(e *campaign.Engine) Option {
	return func(s *Service) { s.campaigns = e }
}

// WithLimiter enables per-customer rate limits on check-ins and redemptions.
func WithLimiter(l *limiter.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithEventBus publishes a loyalty event after every commit.
func WithEventBus(b domain.EventBus) Option {
	return func(s *Service) { s.bus = b }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService creates a ledger service.
func NewService(repo domain.Repository, programs *program.Service, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		programs:    programs,
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Programs returns the program service used to resolve tenant programs.
func (s *Service) Programs() *program.Service {
	return s.programs
}

// retry runs op until it succeeds, fails with something other than
// ErrConflict, or runs out of attempts.
func (s *Service) retry(ctx context.Context, name string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 5 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil || !errors.Is(err, repository.ErrConflict) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		s.logger.Debug("ledger conflict, retrying", "operation", name, "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxAttempts-1)), ctx))

	if errors.Is(err, repository.ErrConflict) {
		s.logger.Warn("ledger conflict not resolved", "operation", name, "attempts", attempt)
	}
	return err
}

// commit assigns the transaction ID and applies the entry.
func (s *Service) commit(ctx context.Context, tenantID string, entry *domain.LedgerEntry) error {
	if tx := entry.Transaction; tx != nil && tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	return s.repo.CommitLedger(ctx, tenantID, entry)
}

func (s *Service) allow(ctx context.Context, tenantID, customerID string, action limiter.Action) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Allow(ctx, tenantID, customerID, action); err != nil {
		if errors.Is(err, limiter.ErrRateLimited) {
			s.logger.Info("rate limited",
				"tenant_id", tenantID,
				"customer_id", customerID,
				"action", action,
			)
		}
		return err
	}
	return nil
}

// loadState loads the customer snapshot and the tenant program. The tier is
// re-resolved against the current program, since thresholds may have changed
// since the snapshot was last committed.
func (s *Service) loadState(ctx context.Context, tenantID, customerID string) (*domain.Customer, *domain.Program, error) {
	c, p, err := s.loadStored(ctx, tenantID, customerID)
	if err != nil {
		return nil, nil, err
	}
	c.Tier = tiers.Resolve(c.Points, p.Tiers)
	return c, p, nil
}

// loadStored is loadState without tier resolution.
func (s *Service) loadStored(ctx context.Context, tenantID, customerID string) (*domain.Customer, *domain.Program, error) {
	c, err := s.repo.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, nil, fmt.Errorf("customer %s: %w", customerID, err)
	}
	p, err := s.programs.Get(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

// publish emits a loyalty event. Failures are logged; the ledger commit
// already happened and stays authoritative.
func (s *Service) publish(ctx context.Context, topic string, c *domain.Customer, tx *domain.Transaction, actorID, message string) {
	if s.bus == nil {
		return
	}
	event := &domain.LoyaltyEvent{
		Topic:         topic,
		TenantID:      c.TenantID,
		CustomerID:    c.ID,
		ActorID:       actorID,
		Transaction:   tx,
		PointsBalance: c.Points,
		Tier:          c.Tier,
		Message:       message,
		OccurredAt:    s.now(),
	}
	if err := bus.PublishEvent(ctx, s.bus, event); err != nil {
		s.logger.Error("failed to publish event",
			"topic", topic,
			"tenant_id", c.TenantID,
			"customer_id", c.ID,
			"error", err,
		)
	}
}
