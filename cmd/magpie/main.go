// Magpie - Multi-tenant loyalty engine.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/magpie/internal/api"
	"github.com/opensource-finance/magpie/internal/bus"
	"github.com/opensource-finance/magpie/internal/cache"
	"github.com/opensource-finance/magpie/internal/campaign"
	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/expiry"
	"github.com/opensource-finance/magpie/internal/ledger"
	"github.com/opensource-finance/magpie/internal/limiter"
	"github.com/opensource-finance/magpie/internal/program"
	"github.com/opensource-finance/magpie/internal/repository"
	"github.com/opensource-finance/magpie/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting magpie",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"edition", cfg.Edition,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Program template for tenants without a stored program
	template, err := program.LoadTemplate(cfg.ProgramTemplate)
	if err != nil {
		slog.Error("failed to load program template", "error", err)
		os.Exit(1)
	}
	programs := program.NewService(repo, cacheImpl, template, cfg.Cache.ProgramTTL)
	slog.Info("program service initialized", "template", template.Name)

	// Campaigns are compiled lazily per tenant from the repository
	campaigns, err := campaign.NewEngine(repo.ListCampaigns, 100)
	if err != nil {
		slog.Error("failed to initialize campaign engine", "error", err)
		os.Exit(1)
	}
	defer campaigns.Close()

	ledgerSvc := ledger.NewService(repo, programs,
		ledger.WithCampaigns(campaigns),
		ledger.WithLimiter(limiter.New(cacheImpl, cfg.Limits)),
		ledger.WithEventBus(busImpl),
	)
	slog.Info("ledger service initialized",
		"checkin_limit", cfg.Limits.CheckInMax,
		"redeem_limit", cfg.Limits.RedeemMax,
	)

	// Audit worker: known tenants now, new ones as requests arrive
	auditWorker := worker.NewWorker(busImpl, repo)
	tenantIDs, err := repo.ListTenants(ctx)
	if err != nil {
		slog.Warn("failed to list tenants", "error", err)
	}
	if err := auditWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
		slog.Error("failed to start audit worker", "error", err)
		os.Exit(1)
	}
	slog.Info("audit worker started", "tenant_count", len(tenantIDs))

	// Expiry sweep
	var scheduler *expiry.Scheduler
	if cfg.Expiry.Enabled {
		scheduler, err = expiry.NewScheduler(ledgerSvc, repo, cfg.Expiry.Interval)
		if err != nil {
			slog.Error("failed to create expiry scheduler", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			slog.Error("failed to start expiry scheduler", "error", err)
			os.Exit(1)
		}
	}

	srv := api.NewServer(cfg.Server, api.Dependencies{
		Repo:      repo,
		Cache:     cacheImpl,
		Bus:       busImpl,
		Ledger:    ledgerSvc,
		Programs:  programs,
		Campaigns: campaigns,
		OnTenant: func(tenantID string) {
			if err := auditWorker.EnsureTenant(tenantID); err != nil {
				slog.Warn("failed to subscribe audit worker", "tenant_id", tenantID, "error", err)
			}
		},
	}, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("magpie is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			slog.Error("failed to stop expiry scheduler", "error", err)
		}
	}

	if err := auditWorker.Stop(); err != nil {
		slog.Error("failed to stop audit worker", "error", err)
	}

	slog.Info("magpie shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  MAGPIE - loyalty points, tiers and rewards")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Edition:  %s\n", cfg.Edition)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /customers                 - Enroll a customer (staff)")
	fmt.Println("    GET  /customers/{id}            - Customer profile")
	fmt.Println("    POST /purchases                 - Record a purchase")
	fmt.Println("    POST /purchases/pending         - Submit a purchase for review")
	fmt.Println("    POST /purchases/{id}/verify     - Approve or decline (staff)")
	fmt.Println("    POST /rewards/{id}/redeem       - Redeem a reward")
	fmt.Println("    POST /checkin                   - Location check-in")
	fmt.Println("    GET  /program                   - Loyalty program")
	fmt.Println("    POST /campaigns                 - Create a CEL campaign (staff)")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println()
}
