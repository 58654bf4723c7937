package port

import (
	"context"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops a key so a failed request can be resubmitted
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetConcerts returns the cached catalog; ok is false on a miss
	GetConcerts(ctx context.Context) (concerts []domain.Concert, ok bool, err error)

	SetConcerts(ctx context.Context, concerts []domain.Concert) error

	// InvalidateConcerts drops the cached catalog after stock changed
	InvalidateConcerts(ctx context.Context) error
}
