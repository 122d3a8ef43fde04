// Package program owns tenant loyalty program configuration: the stock
// default, YAML templates, validation, and per-tenant lookup.
package program

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/tiers"
)

// ErrInvalidProgram is returned when a program violates its invariants.
var ErrInvalidProgram = errors.New("invalid program")

// Default returns the stock program: 2 points per dollar and four tiers.
func Default() *domain.Program {
	return &domain.Program{
		Name:            "Default Loyalty Program",
		PointsPerDollar: 2,
		Tiers: []domain.TierDefinition{
			{Name: domain.TierBronze, MinPoints: 0, Multiplier: 1, Benefits: []string{"Earn 2 points per dollar"}},
			{Name: domain.TierSilver, MinPoints: 500, Multiplier: 1.05, Benefits: []string{"5% bonus points", "Birthday reward"}},
			{Name: domain.TierGold, MinPoints: 1000, Multiplier: 1.1, Benefits: []string{"10% bonus points", "Priority support"}},
			{Name: domain.TierPlatinum, MinPoints: 2000, Multiplier: 1.15, Benefits: []string{"15% bonus points", "Exclusive rewards"}},
		},
		Rules: domain.ProgramRules{
			PointExpiryDays:     365,
			ReferralBonus:       100,
			BirthdayBonus:       250,
			CheckInBonusPoints:  50,
			CheckInRadiusMeters: 150,
		},
	}
}

// LoadTemplate reads a YAML program template. Fields missing from the file
// keep their default values. An empty path returns the default.
func LoadTemplate(path string) (*domain.Program, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program template %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing program template: %w", err)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the program invariants: positive earn rate, stock tier
// names, a first tier at 0, strictly increasing thresholds and multipliers of
// at least 1.
func Validate(p *domain.Program) error {
	if p == nil {
		return fmt.Errorf("%w: program is nil", ErrInvalidProgram)
	}
	if p.PointsPerDollar <= 0 {
		return fmt.Errorf("%w: pointsPerDollar must be positive", ErrInvalidProgram)
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrInvalidProgram)
	}
	if p.Tiers[0].MinPoints != 0 {
		return fmt.Errorf("%w: first tier must start at 0 points", ErrInvalidProgram)
	}

	seen := make(map[domain.Tier]bool, len(p.Tiers))
	for i, t := range p.Tiers {
		if t.Name == "" {
			return fmt.Errorf("%w: tier %d has no name", ErrInvalidProgram, i)
		}
		if tiers.Rank(t.Name) < 0 {
			return fmt.Errorf("%w: tier %q must be bronze, silver, gold or platinum", ErrInvalidProgram, t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate tier %s", ErrInvalidProgram, t.Name)
		}
		seen[t.Name] = true

		if t.Multiplier < 1 {
			return fmt.Errorf("%w: tier %s multiplier must be >= 1", ErrInvalidProgram, t.Name)
		}
		if i > 0 && t.MinPoints <= p.Tiers[i-1].MinPoints {
			return fmt.Errorf("%w: tier %s threshold must exceed %s", ErrInvalidProgram, t.Name, p.Tiers[i-1].Name)
		}
	}

	r := p.Rules
	if r.PointExpiryDays < 0 || r.ReferralBonus < 0 || r.BirthdayBonus < 0 || r.CheckInBonusPoints < 0 {
		return fmt.Errorf("%w: rule values must not be negative", ErrInvalidProgram)
	}
	if r.CheckInRadiusMeters <= 0 {
		return fmt.Errorf("%w: checkInRadiusMeters must be positive", ErrInvalidProgram)
	}
	return nil
}
