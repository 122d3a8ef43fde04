package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetProgram retrieves the cached program of a tenant.
	// Returns nil, nil on miss.
	GetProgram(ctx context.Context, tenantID string) (*Program, error)

	// SetProgram caches a tenant's program.
	SetProgram(ctx context.Context, tenantID string, program *Program, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// The counter resets once the window elapses. Used for rate limits.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase checks local first, then Redis
	EnableTwoPhase bool

	// ProgramTTL bounds how long a program stays cached
	ProgramTTL time.Duration
}
