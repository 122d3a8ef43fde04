// Package campaign provides the CEL-Go based special-offer campaign engine.
package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/magpie/internal/domain"
)

// Engine evaluates tenant campaigns against purchases.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   map[string]map[string]*CompiledCampaign // tenantID -> campaignID
	loader     Loader
	maxWorkers int
}

// CompiledCampaign holds a pre-compiled CEL program.
type CompiledCampaign struct {
	Campaign *domain.Campaign
	Program  cel.Program
}

// Loader returns the stored campaigns of a tenant. It is used to load a
// tenant lazily on its first evaluation.
type Loader func(ctx context.Context, tenantID string) ([]*domain.Campaign, error)

// NewEngine creates a new campaign engine.
func NewEngine(loader Loader, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("location", cel.StringType),
		cel.Variable("payment_method", cel.StringType),
		cel.Variable("tier", cel.StringType),
		cel.Variable("visit_count", cel.IntType),
		cel.Variable("points", cel.IntType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
		cel.Variable("items", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		compiled:   make(map[string]map[string]*CompiledCampaign),
		loader:     loader,
		maxWorkers: maxWorkers,
	}, nil
}

// Input is the purchase context exposed to campaign expressions.
type Input struct {
	Customer *domain.Customer
	Purchase domain.Purchase
	Now      time.Time
}

func (in *Input) activation() map[string]any {
	ts := in.Purchase.Timestamp
	if ts.IsZero() {
		ts = in.Now
	}
	items := 0
	for _, it := range in.Purchase.Items {
		items += max(it.Quantity, 1)
	}
	return map[string]any{
		"amount":         in.Purchase.Amount,
		"location":       in.Purchase.Location,
		"payment_method": in.Purchase.PaymentMethod,
		"tier":           string(in.Customer.Tier),
		"visit_count":    int64(in.Customer.VisitCount),
		"points":         in.Customer.Points,
		"hour":           int64(ts.UTC().Hour()),
		"weekday":        int64(ts.UTC().Weekday()),
		"items":          int64(items),
	}
}

// Validate compiles a campaign without loading it.
func (e *Engine) Validate(c *domain.Campaign) error {
	if c == nil {
		return fmt.Errorf("campaign is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compile(c)
	return err
}

// Reload replaces the loaded campaigns of a tenant. Disabled campaigns are
// skipped; a compile failure leaves the previous set in place.
func (e *Engine) Reload(tenantID string, campaigns []*domain.Campaign) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledCampaign)
	for _, c := range campaigns {
		if !c.Enabled {
			continue
		}
		compiled, err := e.compile(c)
		if err != nil {
			return err
		}
		next[c.ID] = compiled
	}

	e.compiled[tenantID] = next
	return nil
}

// ReloadFromLoader reloads a tenant from the engine's loader.
func (e *Engine) ReloadFromLoader(ctx context.Context, tenantID string) error {
	if e.loader == nil {
		return fmt.Errorf("no campaign loader configured")
	}
	campaigns, err := e.loader(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("loading campaigns: %w", err)
	}
	return e.Reload(tenantID, campaigns)
}

// Match returns the IDs of the tenant's campaigns the purchase satisfies.
// Campaigns that fail to evaluate do not match.
func (e *Engine) Match(ctx context.Context, tenantID string, in Input) ([]string, error) {
	if err := e.ensureLoaded(ctx, tenantID); err != nil {
		return nil, err
	}

	e.mu.RLock()
	loaded := make([]*CompiledCampaign, 0, len(e.compiled[tenantID]))
	for _, c := range e.compiled[tenantID] {
		loaded = append(loaded, c)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil, nil
	}

	activation := in.activation()

	hits := make([]bool, len(loaded))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, c := range loaded {
		wg.Add(1)
		go func(idx int, cc *CompiledCampaign) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			out, _, err := cc.Program.ContextEval(ctx, activation)
			if err != nil {
				return
			}
			if b, ok := out.(types.Bool); ok && bool(b) {
				hits[idx] = true
			}
		}(i, c)
	}
	wg.Wait()

	var matched []string
	for i, hit := range hits {
		if hit {
			matched = append(matched, loaded[i].Campaign.ID)
		}
	}
	return matched, nil
}

// IsSpecialOffer reports whether any enabled campaign matches the purchase.
func (e *Engine) IsSpecialOffer(ctx context.Context, tenantID string, in Input) (bool, error) {
	matched, err := e.Match(ctx, tenantID, in)
	if err != nil {
		return false, err
	}
	return len(matched) > 0, nil
}

// Count returns the number of loaded campaigns for a tenant.
func (e *Engine) Count(tenantID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled[tenantID])
}

// Close unloads every tenant.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]map[string]*CompiledCampaign)
	return nil
}

func (e *Engine) ensureLoaded(ctx context.Context, tenantID string) error {
	e.mu.RLock()
	_, ok := e.compiled[tenantID]
	e.mu.RUnlock()
	if ok || e.loader == nil {
		return nil
	}
	return e.ReloadFromLoader(ctx, tenantID)
}

func (e *Engine) compile(c *domain.Campaign) (*CompiledCampaign, error) {
	ast, issues := e.env.Compile(c.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile campaign %s: %w", c.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("campaign %s: expression must return bool, got %s", c.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for campaign %s: %w", c.ID, err)
	}

	return &CompiledCampaign{Campaign: c, Program: program}, nil
}
