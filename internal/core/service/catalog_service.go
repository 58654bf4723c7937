package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

// CatalogService serves the concert listing through a read-through
// cache.
type CatalogService struct {
	repo   port.CatalogRepository
	cache  port.CacheRepository
	logger *logrus.Logger
	now    func() time.Time
}

func NewCatalogService(repo port.CatalogRepository, cache port.CacheRepository, logger *logrus.Logger) *CatalogService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CatalogService{repo: repo, cache: cache, logger: logger, now: time.Now}
}

func (s *CatalogService) ListConcerts(ctx context.Context) ([]domain.Concert, error) {
	concerts, ok, err := s.cache.GetConcerts(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("catalog cache read failed")
	}
	if ok {
		return concerts, nil
	}

	concerts, err = s.repo.ListConcerts(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to list concerts")
		return nil, err
	}

	if err := s.cache.SetConcerts(ctx, concerts); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("catalog cache write failed")
	}

	return concerts, nil
}

// Seed inserts concerts when the catalog is empty and reports how many
// were created. Missing ids are generated.
func (s *CatalogService) Seed(ctx context.Context, concerts []domain.Concert) (int, error) {
	n, err := s.repo.CountConcerts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	now := s.now()
	for i, c := range concerts {
		if c.Stock < 0 || c.Price < 0 {
			return i, fmt.Errorf("%w: concert %q has negative stock or price", domain.ErrValidation, c.Name)
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CreatedAt, c.UpdatedAt = now, now

		if err := s.repo.CreateConcert(ctx, c); err != nil {
			return i, err
		}
	}

	if err := s.cache.InvalidateConcerts(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to invalidate catalog cache")
	}

	return len(concerts), nil
}
