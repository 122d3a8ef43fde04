package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/magpie/internal/campaign"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/ledger"
	"github.com/opensource-finance/magpie/internal/program"
)

// Dependencies are the collaborators the HTTP layer drives.
type Dependencies struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Ledger    *ledger.Service
	Programs  *program.Service
	Campaigns *campaign.Engine

	// OnTenant is called for every request's tenant.
	OnTenant func(tenantID string)
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Dependencies, version string) *Server {
	handler := NewHandler(deps, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware(deps.OnTenant))
		r.Use(IdentityMiddleware)

		// Customers
		r.Get("/customers/{id}", handler.GetCustomer)
		r.Get("/customers/{id}/tier-progress", handler.TierProgress)
		r.Get("/customers/{id}/transactions", handler.ListTransactions)

		// Earning and spending
		r.Post("/purchases", handler.RecordPurchase)
		r.Post("/purchases/pending", handler.SubmitPurchase)
		r.Post("/rewards/{id}/redeem", handler.Redeem)
		r.Post("/checkin", handler.CheckIn)

		// Catalog
		r.Get("/rewards", handler.ListRewards)
		r.Get("/geofences", handler.ListGeofences)
		r.Get("/program", handler.GetProgram)
		r.Get("/campaigns", handler.ListCampaigns)

		// Staff only
		r.Group(func(r chi.Router) {
			r.Use(RequireStaff)

			r.Get("/customers", handler.ListCustomers)
			r.Post("/customers", handler.Enroll)
			r.Get("/customers/{id}/analysis", handler.Analyze)
			r.Post("/customers/{id}/adjust", handler.Adjust)
			r.Post("/customers/{id}/reconcile", handler.Reconcile)

			r.Get("/purchases/pending", handler.ListPendingPurchases)
			r.Post("/purchases/{id}/verify", handler.VerifyPurchase)

			r.Post("/rewards", handler.CreateReward)
			r.Put("/rewards/{id}", handler.UpdateReward)
			r.Post("/geofences", handler.CreateGeofence)
			r.Put("/program", handler.UpdateProgram)

			r.Post("/campaigns", handler.CreateCampaign)
			r.Post("/campaigns/reload", handler.ReloadCampaigns)

			r.Get("/audit", handler.ListAudit)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
