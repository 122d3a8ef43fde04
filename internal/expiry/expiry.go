// Package expiry runs the periodic point-expiry sweep across tenants.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Expirer forfeits stale balances of one tenant.
type Expirer interface {
	ExpireTenant(ctx context.Context, tenantID string) (int, error)
}

// TenantLister enumerates known tenants.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// Scheduler sweeps every tenant on a fixed interval.
type Scheduler struct {
	expirer  Expirer
	tenants  TenantLister
	interval time.Duration
	timeout  time.Duration

	sched gocron.Scheduler
}

// NewScheduler creates an expiry scheduler. Each sweep is bounded by the
// interval so a slow run never overlaps the next one.
func NewScheduler(expirer Expirer, tenants TenantLister, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("expiry interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		expirer:  expirer,
		tenants:  tenants,
		interval: interval,
		timeout:  interval,
		sched:    sched,
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Scheduler) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("expiry sweep failed", "error", err)
			}
		}),
		gocron.WithName("point-expiry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	s.sched.Start()
	slog.Info("expiry scheduler started", "interval", s.interval.String())
	return nil
}

// Sweep expires stale balances for every tenant and returns the total number
// of customers affected. A failing tenant is logged and skipped.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	start := time.Now()

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	total := 0
	for _, tenantID := range tenants {
		n, err := s.expirer.ExpireTenant(ctx, tenantID)
		if err != nil {
			slog.Error("tenant expiry failed", "tenant_id", tenantID, "error", err)
			continue
		}
		total += n
	}

	slog.Info("expiry sweep completed",
		"tenants", len(tenants),
		"expired", total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return total, nil
}

// Stop shuts the scheduler down, waiting for a running sweep.
func (s *Scheduler) Stop() error {
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop expiry scheduler: %w", err)
	}
	slog.Info("expiry scheduler stopped")
	return nil
}
