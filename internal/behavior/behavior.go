// Package behavior derives churn risk and value estimates from a customer's
// history. Everything here is read-only.
package behavior

import (
	"time"

	"github.com/samber/lo"

	"github.com/opensource-finance/magpie/internal/domain"
)

const day = 24 * time.Hour

// Analyze computes the behavior analysis of c as of now. Transactions of
// other customers are ignored.
func Analyze(c *domain.Customer, txs []*domain.Transaction, now time.Time) domain.BehaviorAnalysis {
	own := lo.Filter(txs, func(tx *domain.Transaction, _ int) bool {
		return tx != nil && tx.CustomerID == c.ID
	})

	avg := 0.0
	if len(own) > 0 {
		avg = lo.SumBy(own, func(tx *domain.Transaction) float64 { return tx.Amount }) / float64(len(own))
	}

	daysSinceJoin := wholeDays(now.Sub(c.JoinDate))
	frequency := 0.0
	if daysSinceJoin > 0 {
		frequency = float64(c.VisitCount) / (float64(daysSinceJoin) / 30)
	}

	daysSinceLastVisit := wholeDays(now.Sub(c.LastVisit))

	risk := domain.ChurnLow
	switch {
	case daysSinceLastVisit > 30:
		risk = domain.ChurnHigh
	case daysSinceLastVisit > 14 || frequency < 1:
		risk = domain.ChurnMedium
	}

	return domain.BehaviorAnalysis{
		CustomerID:          c.ID,
		ChurnRisk:           risk,
		LifetimeValue:       c.TotalSpent * (frequency * 12),
		AvgTransactionValue: avg,
		VisitFrequency:      frequency,
		DaysSinceLastVisit:  daysSinceLastVisit,
		Recommendations:     recommend(risk, avg, frequency),
	}
}

func recommend(risk domain.ChurnRisk, avg, frequency float64) []string {
	recs := []string{}
	if risk == domain.ChurnHigh {
		recs = append(recs, "Send win-back campaign", "Offer special discount")
	}
	if avg < 10 {
		recs = append(recs, "Promote higher-value items", "Suggest add-ons")
	}
	if frequency > 4 {
		recs = append(recs, "Consider VIP program", "Offer exclusive rewards")
	}
	return recs
}

// wholeDays floors a duration to days, matching floor() for negative spans.
func wholeDays(d time.Duration) int {
	n := int(d / day)
	if d < 0 && d%day != 0 {
		n--
	}
	return n
}
