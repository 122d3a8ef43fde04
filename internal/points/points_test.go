package points

import (
	"testing"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/program"
)

var (
	march = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	july  = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)
)

func newCustomer(points int64, tier domain.Tier) *domain.Customer {
	return &domain.Customer{
		ID:       "cust-001",
		TenantID: "tenant-001",
		Points:   points,
		Tier:     tier,
		JoinDate: july,
	}
}

func TestCalculate(t *testing.T) {
	prog := program.Default()

	tests := []struct {
		name    string
		in      CalcInput
		base    int64
		bonus   int64
		total   int64
		multipl float64
	}{
		{
			name:    "PlainPurchase",
			in:      CalcInput{Amount: 12.50, Tier: domain.TierBronze, JoinDate: july, Now: march},
			base:    25,
			total:   25,
			multipl: 1,
		},
		{
			name:    "SpecialOffer",
			in:      CalcInput{Amount: 10.75, Tier: domain.TierBronze, SpecialOffer: true, JoinDate: july, Now: march},
			base:    21,
			bonus:   10,
			total:   31,
			multipl: 1,
		},
		{
			name:    "BirthdayMonth",
			in:      CalcInput{Amount: 10, Tier: domain.TierBronze, JoinDate: july, Now: time.Date(2026, time.July, 20, 0, 0, 0, 0, time.UTC)},
			base:    20,
			bonus:   250,
			total:   270,
			multipl: 1,
		},
		{
			name:    "ZeroAmountBirthday",
			in:      CalcInput{Amount: 0, Tier: domain.TierBronze, JoinDate: july, Now: time.Date(2027, time.July, 2, 0, 0, 0, 0, time.UTC)},
			base:    0,
			bonus:   250,
			total:   250,
			multipl: 1,
		},
		{
			name:    "PlatinumMultiplier",
			in:      CalcInput{Amount: 50, Tier: domain.TierPlatinum, JoinDate: july, Now: march},
			base:    100,
			total:   115,
			multipl: 1.15,
		},
		{
			name:    "UnknownTier",
			in:      CalcInput{Amount: 5, Tier: "diamond", JoinDate: july, Now: march},
			base:    10,
			total:   10,
			multipl: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Program = prog
			got := Calculate(tt.in)
			if got.BasePoints != tt.base {
				t.Errorf("base = %d, want %d", got.BasePoints, tt.base)
			}
			if got.BonusPoints != tt.bonus {
				t.Errorf("bonus = %d, want %d", got.BonusPoints, tt.bonus)
			}
			if got.TotalPoints != tt.total {
				t.Errorf("total = %d, want %d", got.TotalPoints, tt.total)
			}
			if got.TierMultiplier != tt.multipl {
				t.Errorf("multiplier = %f, want %f", got.TierMultiplier, tt.multipl)
			}
		})
	}
}

func TestIsBirthdayMonth(t *testing.T) {
	if !IsBirthdayMonth(july, time.Date(2030, time.July, 31, 23, 0, 0, 0, time.UTC)) {
		t.Error("same month in a later year should match")
	}
	if IsBirthdayMonth(july, march) {
		t.Error("different month should not match")
	}
	if IsBirthdayMonth(time.Time{}, march) {
		t.Error("zero join date should never match")
	}
}

func TestProcess(t *testing.T) {
	prog := program.Default()

	t.Run("UpdatesSnapshot", func(t *testing.T) {
		c := newCustomer(480, domain.TierBronze)
		c.TotalSpent = 100
		c.VisitCount = 3

		res := Process(c, domain.Purchase{
			Amount:        12.50,
			Location:      "Main St",
			PaymentMethod: "card",
			Timestamp:     march,
		}, prog, march)

		if res.Customer.Points != 505 {
			t.Errorf("expected 505 points, got %d", res.Customer.Points)
		}
		if res.Customer.Tier != domain.TierSilver {
			t.Errorf("expected silver, got %s", res.Customer.Tier)
		}
		if res.Customer.TotalSpent != 112.50 {
			t.Errorf("expected total spent 112.50, got %f", res.Customer.TotalSpent)
		}
		if res.Customer.VisitCount != 4 {
			t.Errorf("expected 4 visits, got %d", res.Customer.VisitCount)
		}
		if !res.Customer.LastVisit.Equal(march) {
			t.Errorf("expected last visit %v, got %v", march, res.Customer.LastVisit)
		}

		tx := res.Transaction
		if tx.PointsEarned != 25 || tx.PointsRedeemed != 0 {
			t.Errorf("unexpected transaction points %+v", tx)
		}
		if tx.Type != domain.TxPurchase || tx.Location != "Main St" || tx.PaymentMethod != "card" {
			t.Errorf("unexpected transaction tags %+v", tx)
		}

		// Input snapshot is not mutated
		if c.Points != 480 || c.VisitCount != 3 {
			t.Error("input customer was mutated")
		}
	})

	t.Run("BackdatedKeepsLastVisit", func(t *testing.T) {
		c := newCustomer(0, domain.TierBronze)
		c.LastVisit = march

		earlier := march.AddDate(0, 0, -7)
		res := Process(c, domain.Purchase{Amount: 10, Timestamp: earlier}, prog, march)
		if !res.Customer.LastVisit.Equal(march) {
			t.Errorf("expected last visit to stay %v, got %v", march, res.Customer.LastVisit)
		}
		if !res.Transaction.Timestamp.Equal(earlier) {
			t.Errorf("expected transaction at %v, got %v", earlier, res.Transaction.Timestamp)
		}
	})

	t.Run("DefaultsTimestampToNow", func(t *testing.T) {
		res := Process(newCustomer(0, domain.TierBronze), domain.Purchase{Amount: 1}, prog, march)
		if !res.Transaction.Timestamp.Equal(march) {
			t.Errorf("expected timestamp %v, got %v", march, res.Transaction.Timestamp)
		}
	})
}

func TestAward(t *testing.T) {
	prog := program.Default()
	c := newCustomer(990, domain.TierSilver)
	c.VisitCount = 7

	res := Award(c, 50, domain.TxCheckIn, domain.LocationCheckIn, domain.PaymentCheckIn, prog, march)

	if res.Customer.Points != 1040 || res.Customer.Tier != domain.TierGold {
		t.Errorf("unexpected snapshot %d/%s", res.Customer.Points, res.Customer.Tier)
	}
	if res.Customer.VisitCount != 7 {
		t.Errorf("award should not change visit count, got %d", res.Customer.VisitCount)
	}
	if res.Transaction.Amount != 0 || res.Transaction.PointsEarned != 50 {
		t.Errorf("unexpected transaction %+v", res.Transaction)
	}
	if res.Transaction.Location != domain.LocationCheckIn {
		t.Errorf("expected check-in location tag, got %s", res.Transaction.Location)
	}
}

func TestAdjust(t *testing.T) {
	prog := program.Default()

	t.Run("Positive", func(t *testing.T) {
		res, ok := Adjust(newCustomer(100, domain.TierBronze), 500, prog, march)
		if !ok {
			t.Fatal("expected adjustment")
		}
		if res.Customer.Points != 600 || res.Customer.Tier != domain.TierSilver {
			t.Errorf("unexpected snapshot %d/%s", res.Customer.Points, res.Customer.Tier)
		}
		if res.Transaction.PointsEarned != 500 || res.Transaction.PointsRedeemed != 0 {
			t.Errorf("unexpected transaction %+v", res.Transaction)
		}
	})

	t.Run("NegativeClamped", func(t *testing.T) {
		res, ok := Adjust(newCustomer(100, domain.TierBronze), -300, prog, march)
		if !ok {
			t.Fatal("expected adjustment")
		}
		if res.Customer.Points != 0 {
			t.Errorf("expected 0 points, got %d", res.Customer.Points)
		}
		if res.Transaction.PointsRedeemed != 100 {
			t.Errorf("expected 100 redeemed, got %d", res.Transaction.PointsRedeemed)
		}
	})

	t.Run("Noop", func(t *testing.T) {
		if _, ok := Adjust(newCustomer(0, domain.TierBronze), -10, prog, march); ok {
			t.Error("expected no adjustment on empty balance")
		}
		if _, ok := Adjust(newCustomer(10, domain.TierBronze), 0, prog, march); ok {
			t.Error("expected no adjustment for zero delta")
		}
	})
}

func TestExpire(t *testing.T) {
	prog := program.Default()

	t.Run("Inactive", func(t *testing.T) {
		c := newCustomer(1200, domain.TierGold)
		c.LastVisit = march.AddDate(0, 0, -400)

		res, ok := Expire(c, prog, march)
		if !ok {
			t.Fatal("expected expiry")
		}
		if res.Customer.Points != 0 || res.Customer.Tier != domain.TierBronze {
			t.Errorf("unexpected snapshot %d/%s", res.Customer.Points, res.Customer.Tier)
		}
		if res.Transaction.PointsRedeemed != 1200 || res.Transaction.Type != domain.TxExpiry {
			t.Errorf("unexpected transaction %+v", res.Transaction)
		}
	})

	t.Run("Active", func(t *testing.T) {
		c := newCustomer(1200, domain.TierGold)
		c.LastVisit = march.AddDate(0, 0, -30)
		if _, ok := Expire(c, prog, march); ok {
			t.Error("recently active customer should not expire")
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		p := program.Default()
		p.Rules.PointExpiryDays = 0
		c := newCustomer(1200, domain.TierGold)
		c.LastVisit = march.AddDate(-5, 0, 0)
		if _, ok := Expire(c, p, march); ok {
			t.Error("expiry disabled should not expire")
		}
	})

	t.Run("FallsBackToJoinDate", func(t *testing.T) {
		c := newCustomer(10, domain.TierBronze)
		c.JoinDate = march.AddDate(-2, 0, 0)
		if _, ok := Expire(c, prog, march); !ok {
			t.Error("expected expiry based on join date")
		}
	})
}
