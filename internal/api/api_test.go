package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/opensource-finance/magpie/internal/bus"
	"github.com/opensource-finance/magpie/internal/cache"
	"github.com/opensource-finance/magpie/internal/campaign"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/ledger"
	"github.com/opensource-finance/magpie/internal/limiter"
	"github.com/opensource-finance/magpie/internal/program"
	"github.com/opensource-finance/magpie/internal/repository"
)

const testTenant = "tenant-001"

// createTestServer wires a server over a temp SQLite database.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "magpie-api-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() {
		os.Remove(tmpPath)
		os.Remove(tmpPath + "-wal")
		os.Remove(tmpPath + "-shm")
	})

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(1000)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	programs := program.NewService(repo, lru, nil, time.Minute)
	engine, err := campaign.NewEngine(repo.ListCampaigns, 2)
	if err != nil {
		t.Fatalf("failed to create campaign engine: %v", err)
	}

	svc := ledger.NewService(repo, programs,
		ledger.WithCampaigns(engine),
		ledger.WithLimiter(limiter.New(lru, domain.DefaultLimits())),
		ledger.WithEventBus(eventBus),
	)

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	return NewServer(cfg, Dependencies{
		Repo:      repo,
		Cache:     lru,
		Bus:       eventBus,
		Ledger:    svc,
		Programs:  programs,
		Campaigns: engine,
	}, "test-v1")
}

type caller struct {
	userID string
	role   domain.Role
}

var (
	admin    = caller{userID: "admin-1", role: domain.RoleAdmin}
	alice    = caller{userID: "alice", role: domain.RoleCustomer}
	bob      = caller{userID: "bob", role: domain.RoleCustomer}
	nobody   = caller{}
	manager  = caller{userID: "mgr-1", role: domain.RoleManagement}
	noTenant = "-"
)

func do(t *testing.T, s *Server, as caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doTenant(t, s, testTenant, as, method, path, body)
}

func doTenant(t *testing.T, s *Server, tenant string, as caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewBuffer(b)
	} else {
		buf = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if tenant != noTenant {
		req.Header.Set(TenantIDHeader, tenant)
	}
	if as.userID != "" {
		req.Header.Set(UserIDHeader, as.userID)
	}
	if as.role != "" {
		req.Header.Set(UserRoleHeader, string(as.role))
	}

	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

// enroll joins the customer six months ago so no birthday bonus applies.
func enroll(t *testing.T, s *Server, id string) {
	t.Helper()
	joined := time.Now().UTC().AddDate(0, -6, 0)
	rr := do(t, s, admin, http.MethodPost, "/customers", EnrollRequest{
		ID: id, Name: "Customer " + id, Email: id + "@example.com", JoinDate: &joined,
	})
	expectStatus(t, rr, http.StatusCreated)
}

func TestHealthEndpoints(t *testing.T) {
	s := createTestServer(t)

	rr := doTenant(t, s, noTenant, nobody, http.MethodGet, "/health", nil)
	expectStatus(t, rr, http.StatusOK)

	var health map[string]any
	decodeBody(t, rr, &health)
	if health["status"] != "healthy" || health["version"] != "test-v1" {
		t.Errorf("unexpected health: %v", health)
	}

	rr = doTenant(t, s, noTenant, nobody, http.MethodGet, "/ready", nil)
	expectStatus(t, rr, http.StatusOK)

	if rr.Header().Get(RequestIDHeader) == "" || rr.Header().Get(TraceIDHeader) == "" {
		t.Error("expected request and trace ID headers")
	}
}

func TestMiddleware(t *testing.T) {
	s := createTestServer(t)

	t.Run("TenantRequired", func(t *testing.T) {
		rr := doTenant(t, s, noTenant, admin, http.MethodGet, "/rewards", nil)
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("UserRequired", func(t *testing.T) {
		rr := do(t, s, nobody, http.MethodGet, "/rewards", nil)
		expectStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		rr := do(t, s, caller{userID: "x", role: "superuser"}, http.MethodGet, "/rewards", nil)
		expectStatus(t, rr, http.StatusForbidden)
	})

	t.Run("StaffOnly", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodPost, "/customers", EnrollRequest{Name: "Mallory"})
		expectStatus(t, rr, http.StatusForbidden)

		rr = do(t, s, manager, http.MethodPost, "/customers", EnrollRequest{Name: "Carol"})
		expectStatus(t, rr, http.StatusCreated)
	})

	t.Run("DefaultRoleIsCustomer", func(t *testing.T) {
		rr := do(t, s, caller{userID: "alice"}, http.MethodGet, "/customers", nil)
		expectStatus(t, rr, http.StatusForbidden)
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		rr := do(t, s, nobody, http.MethodOptions, "/rewards", nil)
		expectStatus(t, rr, http.StatusNoContent)
	})
}

func TestCustomerViews(t *testing.T) {
	s := createTestServer(t)
	enroll(t, s, "alice")
	enroll(t, s, "bob")

	t.Run("Staff", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodGet, "/customers/alice", nil)
		expectStatus(t, rr, http.StatusOK)
		var v map[string]any
		decodeBody(t, rr, &v)
		if _, ok := v["version"]; !ok {
			t.Errorf("admin view should include version: %v", v)
		}
	})

	t.Run("Self", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodGet, "/customers/alice", nil)
		expectStatus(t, rr, http.StatusOK)
		var v map[string]any
		decodeBody(t, rr, &v)
		if v["email"] != "alice@example.com" {
			t.Errorf("own view should include email: %v", v)
		}
		if _, ok := v["version"]; ok {
			t.Errorf("own view should not include version: %v", v)
		}
	})

	t.Run("Other", func(t *testing.T) {
		rr := do(t, s, bob, http.MethodGet, "/customers/alice", nil)
		expectStatus(t, rr, http.StatusOK)
		var v map[string]any
		decodeBody(t, rr, &v)
		if _, ok := v["email"]; ok {
			t.Errorf("public view must not include email: %v", v)
		}
		if _, ok := v["points"]; ok {
			t.Errorf("public view must not include points: %v", v)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodGet, "/customers/ghost", nil)
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		rr := doTenant(t, s, "tenant-002", admin, http.MethodGet, "/customers/alice", nil)
		expectStatus(t, rr, http.StatusNotFound)
	})

	t.Run("TransactionsOwnerOnly", func(t *testing.T) {
		rr := do(t, s, bob, http.MethodGet, "/customers/alice/transactions", nil)
		expectStatus(t, rr, http.StatusForbidden)

		rr = do(t, s, alice, http.MethodGet, "/customers/alice/transactions", nil)
		expectStatus(t, rr, http.StatusOK)
	})

	t.Run("EnrollValidation", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodPost, "/customers", EnrollRequest{Name: "X", Email: "not-an-email"})
		expectStatus(t, rr, http.StatusBadRequest)

		rr = do(t, s, admin, http.MethodPost, "/customers", EnrollRequest{ID: "alice", Name: "Dup"})
		expectStatus(t, rr, http.StatusConflict)
	})
}

func TestPurchaseAndRedeemFlow(t *testing.T) {
	s := createTestServer(t)
	enroll(t, s, "alice")

	rr := do(t, s, admin, http.MethodPost, "/purchases", PurchaseRequest{
		CustomerID: "alice", Amount: 300, Location: "Downtown", PaymentMethod: "card",
	})
	expectStatus(t, rr, http.StatusCreated)

	var purchase struct {
		Calculation domain.PointsCalculation `json:"calculation"`
		Points      int64                    `json:"points"`
		Tier        domain.Tier              `json:"tier"`
	}
	decodeBody(t, rr, &purchase)
	if purchase.Points != 600 || purchase.Tier != domain.TierSilver {
		t.Errorf("expected 600 silver, got %d %s", purchase.Points, purchase.Tier)
	}

	rr = do(t, s, admin, http.MethodPost, "/rewards", RewardRequest{ID: "coffee", Name: "Free Coffee", PointsCost: 150})
	expectStatus(t, rr, http.StatusCreated)

	t.Run("Redeem", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodPost, "/rewards/coffee/redeem", nil)
		expectStatus(t, rr, http.StatusOK)

		var res domain.RedemptionResult
		decodeBody(t, rr, &res)
		if !res.Success || res.Message != "Successfully redeemed Free Coffee!" || *res.NewPointsBalance != 450 {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("RedeemInsufficient", func(t *testing.T) {
		do(t, s, admin, http.MethodPost, "/rewards", RewardRequest{ID: "trip", Name: "Trip", PointsCost: 5000})
		rr := do(t, s, alice, http.MethodPost, "/rewards/trip/redeem", nil)
		expectStatus(t, rr, http.StatusUnprocessableEntity)

		var res domain.RedemptionResult
		decodeBody(t, rr, &res)
		if res.Message != "Insufficient points. You need 4550 more points." {
			t.Errorf("unexpected message %q", res.Message)
		}
	})

	t.Run("RedeemRateLimited", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodPost, "/rewards/coffee/redeem", nil)
		expectStatus(t, rr, http.StatusOK)
		rr = do(t, s, alice, http.MethodPost, "/rewards/coffee/redeem", nil)
		expectStatus(t, rr, http.StatusTooManyRequests)
	})

	t.Run("CustomerCannotActForOthers", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodPost, "/purchases", PurchaseRequest{CustomerID: "bob", Amount: 10})
		expectStatus(t, rr, http.StatusForbidden)
	})

	t.Run("StaffMustNameCustomer", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodPost, "/purchases", PurchaseRequest{Amount: 10})
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("TierProgress", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodGet, "/customers/alice/tier-progress", nil)
		expectStatus(t, rr, http.StatusOK)
		var p domain.TierProgress
		decodeBody(t, rr, &p)
		if p.CurrentTier != domain.TierBronze || p.NextTier == nil {
			t.Errorf("unexpected progress: %+v", p)
		}
	})

	t.Run("AdjustAndReconcile", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodPost, "/customers/alice/adjust", AdjustRequest{Delta: 100, Reason: "goodwill"})
		expectStatus(t, rr, http.StatusOK)

		rr = do(t, s, admin, http.MethodPost, "/customers/alice/adjust", AdjustRequest{Delta: 0, Reason: "noop"})
		expectStatus(t, rr, http.StatusBadRequest)

		rr = do(t, s, admin, http.MethodPost, "/customers/alice/reconcile", nil)
		expectStatus(t, rr, http.StatusOK)
		var res map[string]any
		decodeBody(t, rr, &res)
		if res["changed"] != false {
			t.Errorf("expected consistent ledger, got %v", res)
		}
	})

	t.Run("Analysis", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodGet, "/customers/alice/analysis", nil)
		expectStatus(t, rr, http.StatusForbidden)

		rr = do(t, s, admin, http.MethodGet, "/customers/alice/analysis", nil)
		expectStatus(t, rr, http.StatusOK)
	})
}

func TestVerificationFlow(t *testing.T) {
	s := createTestServer(t)
	enroll(t, s, "alice")

	rr := do(t, s, alice, http.MethodPost, "/purchases/pending", SubmitPurchaseRequest{ItemName: "Latte", Amount: 12.5})
	expectStatus(t, rr, http.StatusCreated)
	var pending domain.PendingPurchase
	decodeBody(t, rr, &pending)
	if pending.CustomerID != "alice" || pending.Status != domain.PurchasePending {
		t.Fatalf("unexpected purchase: %+v", pending)
	}

	rr = do(t, s, admin, http.MethodGet, "/purchases/pending", nil)
	expectStatus(t, rr, http.StatusOK)
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &list)
	if list.Count != 1 {
		t.Errorf("expected 1 pending purchase, got %d", list.Count)
	}

	rr = do(t, s, admin, http.MethodPost, "/purchases/"+pending.ID+"/verify", VerifyRequest{Action: "escalate"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = do(t, s, admin, http.MethodPost, "/purchases/"+pending.ID+"/verify", VerifyRequest{Action: domain.ActionApprove})
	expectStatus(t, rr, http.StatusOK)
	var out ledger.VerifyOutcome
	decodeBody(t, rr, &out)
	if out.Purchase.Status != domain.PurchaseApproved || out.Purchase.PointsAwarded != 25 {
		t.Errorf("unexpected outcome: %+v", out.Purchase)
	}

	rr = do(t, s, admin, http.MethodPost, "/purchases/"+pending.ID+"/verify", VerifyRequest{Action: domain.ActionDecline})
	expectStatus(t, rr, http.StatusConflict)
	var errBody map[string]string
	decodeBody(t, rr, &errBody)
	if errBody["error"] != "Purchase already processed" {
		t.Errorf("unexpected error %q", errBody["error"])
	}

	rr = do(t, s, admin, http.MethodGet, "/purchases/pending?status=bogus", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestCheckInFlow(t *testing.T) {
	s := createTestServer(t)
	enroll(t, s, "alice")

	at := CheckInRequest{Latitude: 37.7749, Longitude: -122.4194}

	rr := do(t, s, alice, http.MethodPost, "/checkin", at)
	expectStatus(t, rr, http.StatusUnprocessableEntity)

	rr = do(t, s, admin, http.MethodPost, "/geofences", GeofenceRequest{Name: "SF", Latitude: at.Latitude, Longitude: at.Longitude})
	expectStatus(t, rr, http.StatusCreated)
	var fence domain.Geofence
	decodeBody(t, rr, &fence)
	if fence.RadiusMeters != 150 {
		t.Errorf("expected program default radius 150, got %v", fence.RadiusMeters)
	}

	rr = do(t, s, alice, http.MethodPost, "/checkin", at)
	expectStatus(t, rr, http.StatusOK)
	var res domain.CheckInResult
	decodeBody(t, rr, &res)
	if !res.Success || res.BonusPoints != 50 || res.GeofenceID != fence.ID {
		t.Errorf("unexpected result: %+v", res)
	}

	// Two attempts per window: the failed one above counts too.
	rr = do(t, s, alice, http.MethodPost, "/checkin", at)
	expectStatus(t, rr, http.StatusTooManyRequests)

	rr = do(t, s, alice, http.MethodPost, "/checkin", CheckInRequest{Latitude: 91})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestProgramAndCampaigns(t *testing.T) {
	s := createTestServer(t)
	enroll(t, s, "alice")

	rr := do(t, s, alice, http.MethodGet, "/program", nil)
	expectStatus(t, rr, http.StatusOK)
	var p domain.Program
	decodeBody(t, rr, &p)
	if p.PointsPerDollar != 2 || len(p.Tiers) != 4 {
		t.Errorf("unexpected default program: %+v", p)
	}

	t.Run("UpdateProgram", func(t *testing.T) {
		p.PointsPerDollar = 3
		rr := do(t, s, admin, http.MethodPut, "/program", p)
		expectStatus(t, rr, http.StatusOK)

		bad := p
		bad.PointsPerDollar = 0
		rr = do(t, s, admin, http.MethodPut, "/program", bad)
		expectStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("CreateCampaign", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodPost, "/campaigns", CampaignRequest{Name: "Bad", Expression: "amount +"})
		expectStatus(t, rr, http.StatusBadRequest)

		rr = do(t, s, admin, http.MethodPost, "/campaigns", CampaignRequest{ID: "card", Name: "Card", Expression: `payment_method == "card"`, Enabled: true})
		expectStatus(t, rr, http.StatusCreated)

		rr = do(t, s, admin, http.MethodPost, "/campaigns/reload", nil)
		expectStatus(t, rr, http.StatusOK)

		rr = do(t, s, alice, http.MethodGet, "/campaigns", nil)
		expectStatus(t, rr, http.StatusOK)
	})

	t.Run("CampaignBonus", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodPost, "/purchases", PurchaseRequest{Amount: 10, PaymentMethod: "card"})
		expectStatus(t, rr, http.StatusCreated)
		var out struct {
			Calculation domain.PointsCalculation `json:"calculation"`
			Campaigns   []string                 `json:"campaigns"`
		}
		decodeBody(t, rr, &out)
		// 10 * 3 = 30 base, +15 special offer.
		if out.Calculation.TotalPoints != 45 || len(out.Campaigns) != 1 {
			t.Errorf("unexpected calculation: %+v %v", out.Calculation, out.Campaigns)
		}
	})
}

func TestRewardCatalog(t *testing.T) {
	s := createTestServer(t)

	inactive := false
	do(t, s, admin, http.MethodPost, "/rewards", RewardRequest{ID: "a", Name: "Active", PointsCost: 10})
	do(t, s, admin, http.MethodPost, "/rewards", RewardRequest{ID: "b", Name: "Retired", PointsCost: 10, IsActive: &inactive})

	var list struct {
		Count int `json:"count"`
	}
	rr := do(t, s, alice, http.MethodGet, "/rewards", nil)
	decodeBody(t, rr, &list)
	if list.Count != 1 {
		t.Errorf("customers should see 1 active reward, got %d", list.Count)
	}

	rr = do(t, s, admin, http.MethodGet, "/rewards", nil)
	decodeBody(t, rr, &list)
	if list.Count != 2 {
		t.Errorf("staff should see 2 rewards, got %d", list.Count)
	}

	rr = do(t, s, admin, http.MethodPut, "/rewards/a", RewardRequest{Name: "Active v2", PointsCost: 20})
	expectStatus(t, rr, http.StatusOK)

	rr = do(t, s, admin, http.MethodPut, "/rewards/missing", RewardRequest{Name: "X"})
	expectStatus(t, rr, http.StatusNotFound)

	rr = do(t, s, admin, http.MethodPost, "/rewards", RewardRequest{Name: "Tiered", MinTier: "diamond"})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestAuditEndpoint(t *testing.T) {
	s := createTestServer(t)
	repo := s.handler.repo

	repo.SaveAuditEntry(context.Background(), testTenant, &domain.AuditEntry{
		ID: "a1", Action: domain.TopicPointsEarned, CustomerID: "alice", Timestamp: time.Now().UTC(),
	})

	rr := do(t, s, admin, http.MethodGet, "/audit?customerId=alice", nil)
	expectStatus(t, rr, http.StatusOK)
	var out struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &out)
	if out.Count != 1 {
		t.Errorf("expected 1 audit entry, got %d", out.Count)
	}
}

func TestPurchaseTimestamp(t *testing.T) {
	s := createTestServer(t)
	enroll(t, s, "alice")
	future := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("CustomerTimestampIgnored", func(t *testing.T) {
		rr := do(t, s, alice, http.MethodPost, "/purchases", PurchaseRequest{Amount: 10, Timestamp: &future})
		expectStatus(t, rr, http.StatusCreated)

		var out struct {
			Transaction domain.Transaction `json:"transaction"`
		}
		decodeBody(t, rr, &out)
		if out.Transaction.Timestamp.After(time.Now().Add(time.Minute)) {
			t.Errorf("expected purchase recorded as of now, got %s", out.Transaction.Timestamp)
		}

		rr = do(t, s, alice, http.MethodGet, "/customers/alice", nil)
		expectStatus(t, rr, http.StatusOK)
		var c domain.Customer
		decodeBody(t, rr, &c)
		if c.LastVisit.Year() == 2099 {
			t.Errorf("last visit should not move into the future, got %s", c.LastVisit)
		}
	})

	t.Run("StaffFutureRejected", func(t *testing.T) {
		rr := do(t, s, admin, http.MethodPost, "/purchases", PurchaseRequest{CustomerID: "alice", Amount: 10, Timestamp: &future})
		expectStatus(t, rr, http.StatusBadRequest)
	})
}
