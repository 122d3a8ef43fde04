package checkin

import (
	"testing"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/geo"
	"github.com/opensource-finance/magpie/internal/program"
)

func TestCheckIn(t *testing.T) {
	now := time.Date(2026, time.June, 15, 18, 0, 0, 0, time.UTC)
	prog := program.Default()

	center := domain.Coordinates{Latitude: 40.7580, Longitude: -73.9855}
	visitor := domain.Coordinates{Latitude: 40.7590, Longitude: -73.9855}
	dist := geo.DistanceMeters(visitor, center)

	fenceWithRadius := func(r float64) []*domain.Geofence {
		return []*domain.Geofence{{
			ID:           "fence-times-sq",
			Name:         "Times Square",
			Latitude:     center.Latitude,
			Longitude:    center.Longitude,
			RadiusMeters: r,
		}}
	}

	customer := func() *domain.Customer {
		return &domain.Customer{ID: "cust-001", TenantID: "tenant-001", Points: 100, Tier: domain.TierBronze, VisitCount: 2}
	}

	prior := func(ago time.Duration) []*domain.Transaction {
		return []*domain.Transaction{{
			ID:           "tx-prev",
			CustomerID:   "cust-001",
			Type:         domain.TxCheckIn,
			PointsEarned: 50,
			Location:     domain.LocationCheckIn,
			Timestamp:    now.Add(-ago),
		}}
	}

	tests := []struct {
		name    string
		fences  []*domain.Geofence
		recent  []*domain.Transaction
		success bool
		message string
	}{
		{"NoFences", nil, nil, false, "No locations configured."},
		{"OutsideFence", fenceWithRadius(dist - 1), nil, false, "You are not at a participating location."},
		{"OnBoundary", fenceWithRadius(dist), nil, true, "Check-in successful! You earned 50 bonus points."},
		{"AlreadyCheckedIn", fenceWithRadius(dist + 100), prior(time.Hour), false, "You have already checked in today."},
		{"ExactlyAtWindowEdge", fenceWithRadius(dist + 100), prior(Cooldown), false, "You have already checked in today."},
		{"AfterCooldown", fenceWithRadius(dist + 100), prior(25 * time.Hour), true, "Check-in successful! You earned 50 bonus points."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CheckIn(Input{
				Customer:    customer(),
				Coordinates: visitor,
				Geofences:   tt.fences,
				Program:     prog,
				Recent:      tt.recent,
				Now:         now,
			})
			if out.Result.Success != tt.success {
				t.Fatalf("success = %v, want %v (%s)", out.Result.Success, tt.success, out.Result.Message)
			}
			if out.Result.Message != tt.message {
				t.Errorf("message = %q, want %q", out.Result.Message, tt.message)
			}
			if !tt.success && out.Transaction != nil {
				t.Error("failed check-in must not produce a transaction")
			}
		})
	}
}

func TestCheckInEffects(t *testing.T) {
	now := time.Now().UTC()
	prog := program.Default()
	prog.Rules.CheckInBonusPoints = 75

	c := &domain.Customer{ID: "cust-002", TenantID: "tenant-001", Points: 450, Tier: domain.TierBronze, VisitCount: 4, TotalSpent: 20}
	fence := &domain.Geofence{ID: "fence-1", Latitude: 1, Longitude: 1, RadiusMeters: 10}

	out := CheckIn(Input{
		Customer:    c,
		Coordinates: fence.Center(),
		Geofences:   []*domain.Geofence{fence},
		Program:     prog,
		Now:         now,
	})
	if !out.Result.Success {
		t.Fatalf("expected success: %s", out.Result.Message)
	}
	if out.Result.BonusPoints != 75 || *out.Result.NewPointsBalance != 525 {
		t.Errorf("unexpected result %+v", out.Result)
	}
	if out.Result.GeofenceID != "fence-1" {
		t.Errorf("expected fence-1, got %s", out.Result.GeofenceID)
	}
	if out.Customer.Tier != domain.TierSilver {
		t.Errorf("expected silver after bonus, got %s", out.Customer.Tier)
	}
	if out.Customer.VisitCount != 4 || out.Customer.TotalSpent != 20 {
		t.Error("check-in should only move points and tier")
	}

	tx := out.Transaction
	if tx.Amount != 0 || tx.PointsEarned != 75 || tx.Type != domain.TxCheckIn {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if tx.Location != domain.LocationCheckIn || tx.PaymentMethod != domain.PaymentCheckIn {
		t.Errorf("unexpected tags %s/%s", tx.Location, tx.PaymentMethod)
	}
}

func TestHasRecent(t *testing.T) {
	now := time.Now().UTC()
	txs := []*domain.Transaction{
		{CustomerID: "other", Type: domain.TxCheckIn, Timestamp: now},
		{CustomerID: "cust-001", Type: domain.TxPurchase, Timestamp: now},
		{CustomerID: "cust-001", Location: domain.LocationCheckIn, Timestamp: now.Add(-30 * time.Hour)},
	}
	if HasRecent("cust-001", txs, now) {
		t.Error("other customers, purchases and stale check-ins should not count")
	}

	txs = append(txs, &domain.Transaction{CustomerID: "cust-001", Location: domain.LocationCheckIn, Timestamp: now.Add(-time.Minute)})
	if !HasRecent("cust-001", txs, now) {
		t.Error("untyped row tagged as check-in should count")
	}
}
