// Package limiter provides per-customer action rate limits backed by the
// shared cache's windowed counters.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
)

// ErrRateLimited is returned once a customer exceeds an action's limit.
var ErrRateLimited = errors.New("too many attempts, please try again later")

// Action names a rate-limited customer action.
type Action string

const (
	ActionCheckIn Action = "checkin"
	ActionRedeem  Action = "redeem"
)

// Limit is the maximum number of attempts allowed per window.
type Limit struct {
	Max    int64
	Window time.Duration
}

// Limiter counts attempts per tenant, customer, and action. Counters live in
// the cache so every instance sharing a Redis sees the same window.
type Limiter struct {
	cache  domain.Cache
	limits map[Action]Limit
}

// New creates a limiter from configuration. A zero Max disables that action's
// limit.
func New(cache domain.Cache, cfg domain.LimitsConfig) *Limiter {
	return &Limiter{
		cache: cache,
		limits: map[Action]Limit{
			ActionCheckIn: {Max: cfg.CheckInMax, Window: cfg.CheckInWindow},
			ActionRedeem:  {Max: cfg.RedeemMax, Window: cfg.RedeemWindow},
		},
	}
}

// Allow records an attempt and returns ErrRateLimited when the attempt
// exceeds the limit.
func (l *Limiter) Allow(ctx context.Context, tenantID, customerID string, action Action) error {
	if tenantID == "" || customerID == "" {
		return fmt.Errorf("tenantID and customerID are required")
	}

	limit, ok := l.limits[action]
	if !ok || limit.Max <= 0 || limit.Window <= 0 {
		return nil
	}

	count, err := l.cache.IncrementCounter(ctx, tenantID, counterKey(customerID, action), limit.Window)
	if err != nil {
		return fmt.Errorf("failed to count %s attempts: %w", action, err)
	}
	if count > limit.Max {
		return ErrRateLimited
	}
	return nil
}

// Limit returns the configured limit of an action.
func (l *Limiter) Limit(action Action) Limit {
	return l.limits[action]
}

func counterKey(customerID string, action Action) string {
	return "ratelimit:" + string(action) + ":" + customerID
}
