package domain

// PointsCalculation is the breakdown of points earned by a purchase.
type PointsCalculation struct {
	BasePoints     int64   `json:"basePoints"`
	BonusPoints    int64   `json:"bonusPoints"`
	TierMultiplier float64 `json:"tierMultiplier"`
	TotalPoints    int64   `json:"totalPoints"`
}

// RedemptionResult is the outcome of a redemption attempt.
type RedemptionResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	NewPointsBalance *int64 `json:"newPointsBalance,omitempty"`
	RewardID         string `json:"rewardId,omitempty"`
}

// CheckInResult is the outcome of a check-in attempt.
type CheckInResult struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	NewPointsBalance *int64 `json:"newPointsBalance,omitempty"`
	BonusPoints      int64  `json:"bonusPoints,omitempty"`
	GeofenceID       string `json:"geofenceId,omitempty"`
}

// TierProgress describes how far a balance is from the next tier.
// NextTier is nil at the top tier.
type TierProgress struct {
	CurrentTier        Tier    `json:"currentTier"`
	NextTier           *Tier   `json:"nextTier"`
	PointsToNext       int64   `json:"pointsToNext"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

// ChurnRisk is a coarse likelihood that a customer stops engaging.
type ChurnRisk string

const (
	ChurnLow    ChurnRisk = "low"
	ChurnMedium ChurnRisk = "medium"
	ChurnHigh   ChurnRisk = "high"
)

// BehaviorAnalysis is derived, read-only insight about a customer.
type BehaviorAnalysis struct {
	CustomerID          string    `json:"customerId"`
	ChurnRisk           ChurnRisk `json:"churnRisk"`
	LifetimeValue       float64   `json:"lifetimeValue"`
	AvgTransactionValue float64   `json:"avgTransactionValue"`
	VisitFrequency      float64   `json:"visitFrequency"`
	DaysSinceLastVisit  int       `json:"daysSinceLastVisit"`
	Recommendations     []string  `json:"recommendations"`
}
