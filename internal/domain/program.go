package domain

import "time"

// Program is a tenant's loyalty program configuration.
// Tiers are ordered ascending by MinPoints and the first tier starts at 0.
type Program struct {
	ID              string           `json:"id" yaml:"-"`
	TenantID        string           `json:"tenantId" yaml:"-"`
	Name            string           `json:"name" yaml:"name"`
	PointsPerDollar float64          `json:"pointsPerDollar" yaml:"pointsPerDollar"`
	Tiers           []TierDefinition `json:"tiers" yaml:"tiers"`
	Rules           ProgramRules     `json:"rules" yaml:"rules"`
	UpdatedAt       time.Time        `json:"updatedAt" yaml:"-"`
}

// TierDefinition is one row of the tier table.
type TierDefinition struct {
	Name       Tier     `json:"name" yaml:"name"`
	MinPoints  int64    `json:"minPoints" yaml:"minPoints"`
	Multiplier float64  `json:"multiplier" yaml:"multiplier"`
	Benefits   []string `json:"benefits,omitempty" yaml:"benefits"`
}

// ProgramRules are the tunable bonus and expiry rules of a program.
type ProgramRules struct {
	PointExpiryDays     int     `json:"pointExpiryDays" yaml:"pointExpiryDays"`
	ReferralBonus       int64   `json:"referralBonus" yaml:"referralBonus"`
	BirthdayBonus       int64   `json:"birthdayBonus" yaml:"birthdayBonus"`
	CheckInBonusPoints  int64   `json:"checkInBonusPoints" yaml:"checkInBonusPoints"`
	CheckInRadiusMeters float64 `json:"checkInRadiusMeters" yaml:"checkInRadiusMeters"`
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	cp := *p
	cp.Tiers = make([]TierDefinition, len(p.Tiers))
	for i, t := range p.Tiers {
		t.Benefits = append([]string(nil), t.Benefits...)
		cp.Tiers[i] = t
	}
	return &cp
}
