// Package tiers maps point balances to loyalty tiers.
package tiers

import (
	"cmp"
	"slices"

	"github.com/opensource-finance/magpie/internal/domain"
)

var stockRank = map[domain.Tier]int{
	domain.TierBronze:   0,
	domain.TierSilver:   1,
	domain.TierGold:     2,
	domain.TierPlatinum: 3,
}

// Rank returns the stock rank of a tier (bronze < silver < gold < platinum),
// or -1 for an unknown tier.
func Rank(tier domain.Tier) int {
	if r, ok := stockRank[tier]; ok {
		return r
	}
	return -1
}

// MeetsMinimum reports whether tier ranks at or above required.
func MeetsMinimum(tier, required domain.Tier) bool {
	return Rank(tier) >= Rank(required)
}

// sorted returns a copy of the table ordered ascending by MinPoints.
func sorted(table []domain.TierDefinition) []domain.TierDefinition {
	out := slices.Clone(table)
	slices.SortStableFunc(out, func(a, b domain.TierDefinition) int {
		return cmp.Compare(a.MinPoints, b.MinPoints)
	})
	return out
}

// Resolve returns the highest tier whose threshold is at or below points.
// Falls back to the lowest tier, or bronze for an empty table.
func Resolve(points int64, table []domain.TierDefinition) domain.Tier {
	if len(table) == 0 {
		return domain.TierBronze
	}
	asc := sorted(table)
	for i := len(asc) - 1; i >= 0; i-- {
		if asc[i].MinPoints <= points {
			return asc[i].Name
		}
	}
	return asc[0].Name
}

// Multiplier returns the earning multiplier of tier, or 1 if the tier is not
// in the table.
func Multiplier(tier domain.Tier, table []domain.TierDefinition) float64 {
	for _, t := range table {
		if t.Name == tier {
			return t.Multiplier
		}
	}
	return 1
}

// Progress describes the distance from points to the next tier.
func Progress(points int64, table []domain.TierDefinition) domain.TierProgress {
	if len(table) == 0 {
		return domain.TierProgress{CurrentTier: domain.TierBronze, ProgressPercentage: 100}
	}

	asc := sorted(table)
	current := Resolve(points, asc)
	idx := slices.IndexFunc(asc, func(t domain.TierDefinition) bool { return t.Name == current })

	if idx == len(asc)-1 {
		return domain.TierProgress{
			CurrentTier:        current,
			NextTier:           nil,
			PointsToNext:       0,
			ProgressPercentage: 100,
		}
	}

	cur := asc[idx]
	next := asc[idx+1]
	nextName := next.Name

	span := float64(next.MinPoints - cur.MinPoints)
	pct := 100.0
	if span > 0 {
		pct = float64(points-cur.MinPoints) / span * 100
	}

	return domain.TierProgress{
		CurrentTier:        current,
		NextTier:           &nextName,
		PointsToNext:       max(0, next.MinPoints-points),
		ProgressPercentage: min(100, max(0, pct)),
	}
}
