package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/magpie/internal/domain"
)

// loadConfig builds the configuration from the edition defaults, a .env file
// if present, and MAGPIE_* environment overrides.
func loadConfig() (*domain.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := domain.DefaultConfig()
	if os.Getenv("MAGPIE_TIER") == "pro" {
		cfg = domain.ProConfig()
	}

	if v := os.Getenv("MAGPIE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("MAGPIE_PORT", &cfg.Server.Port); err != nil {
		return nil, err
	}

	if v := os.Getenv("MAGPIE_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("MAGPIE_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if err := envInt("MAGPIE_POSTGRES_PORT", &cfg.Repository.PostgresPort); err != nil {
		return nil, err
	}
	if v := os.Getenv("MAGPIE_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("MAGPIE_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("MAGPIE_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("MAGPIE_POSTGRES_SSLMODE"); v != "" {
		cfg.Repository.PostgresSSLMode = v
	}

	if v := os.Getenv("MAGPIE_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("MAGPIE_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("MAGPIE_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("MAGPIE_NATS_TOKEN"); v != "" {
		cfg.EventBus.NATSToken = v
	}

	cfg.ProgramTemplate = os.Getenv("MAGPIE_PROGRAM_TEMPLATE")

	if v := os.Getenv("MAGPIE_EXPIRY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("MAGPIE_EXPIRY_INTERVAL: %w", err)
		}
		// 0 turns the sweep off.
		cfg.Expiry.Interval = d
		cfg.Expiry.Enabled = d > 0
	}

	if os.Getenv("MAGPIE_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
