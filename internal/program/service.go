package program

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/magpie/internal/domain"
	"github.com/opensource-finance/magpie/internal/repository"
)

// Service resolves tenant programs through the cache, falling back to the
// repository and creating the template program on first access.
type Service struct {
	repo     domain.Repository
	cache    domain.Cache
	template *domain.Program
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates a program service. A nil template uses Default().
func NewService(repo domain.Repository, cache domain.Cache, template *domain.Program, ttl time.Duration) *Service {
	if template == nil {
		template = Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		template: template,
		ttl:      ttl,
		logger:   slog.Default(),
	}
}

// Get returns the tenant's program, creating it from the template if absent.
func (s *Service) Get(ctx context.Context, tenantID string) (*domain.Program, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", repository.ErrInvalidInput)
	}

	if s.cache != nil {
		if p, err := s.cache.GetProgram(ctx, tenantID); err == nil && p != nil {
			return p, nil
		}
	}

	p, err := s.repo.GetProgram(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		p = s.template.Clone()
		p.ID = uuid.New().String()
		p.TenantID = tenantID
		p.UpdatedAt = time.Now().UTC()
		if err := s.repo.SaveProgram(ctx, tenantID, p); err != nil {
			return nil, fmt.Errorf("creating default program: %w", err)
		}
		s.logger.Info("created default program", "tenant_id", tenantID, "program_id", p.ID)
	} else if err != nil {
		return nil, err
	}

	s.store(ctx, tenantID, p)
	return p, nil
}

// Update validates and replaces the tenant's program.
func (s *Service) Update(ctx context.Context, tenantID string, p *domain.Program) (*domain.Program, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	updated := p.Clone()
	updated.ID = current.ID
	updated.TenantID = tenantID
	updated.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveProgram(ctx, tenantID, updated); err != nil {
		return nil, err
	}
	s.store(ctx, tenantID, updated)
	return updated, nil
}

func (s *Service) store(ctx context.Context, tenantID string, p *domain.Program) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetProgram(ctx, tenantID, p, s.ttl); err != nil {
		s.logger.Warn("failed to cache program", "tenant_id", tenantID, "error", err)
	}
}
