package storage

import (
	"context"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

// NopCache is used when no Redis address is configured. Every lookup
// misses and every idempotency key is accepted.
type NopCache struct{}

var _ port.CacheRepository = NopCache{}

func (NopCache) SetIdempotency(context.Context, string) (bool, error) { return true, nil }

func (NopCache) ReleaseIdempotency(context.Context, string) error { return nil }

func (NopCache) GetConcerts(context.Context) ([]domain.Concert, bool, error) {
	return nil, false, nil
}

func (NopCache) SetConcerts(context.Context, []domain.Concert) error { return nil }

func (NopCache) InvalidateConcerts(context.Context) error { return nil }
