package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
)

const programKey = "program"

// byteStore is the raw get/set surface shared by every cache backend.
type byteStore interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
}

func loadProgram(ctx context.Context, s byteStore, tenantID string) (*domain.Program, error) {
	data, err := s.Get(ctx, tenantID, programKey)
	if err != nil || data == nil {
		return nil, err
	}

	var p domain.Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached program: %w", err)
	}
	return &p, nil
}

func storeProgram(ctx context.Context, s byteStore, tenantID string, p *domain.Program, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode program: %w", err)
	}
	return s.Set(ctx, tenantID, programKey, data, ttl)
}
