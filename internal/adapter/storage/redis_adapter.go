package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/port"
)

const (
	catalogKey               = "catalog:concerts"
	defaultIdempotencyKeyTTL = 24 * time.Hour
	defaultCatalogTTL        = 30 * time.Second
)

var _ port.CacheRepository = (*RedisAdapter)(nil)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
	catalogTTL     time.Duration
}

type RedisOption func(*RedisAdapter)

func WithIdempotencyTTL(ttl time.Duration) RedisOption {
	return func(r *RedisAdapter) {
		if ttl > 0 {
			r.idempotencyTTL = ttl
		}
	}
}

func WithCatalogTTL(ttl time.Duration) RedisOption {
	return func(r *RedisAdapter) {
		if ttl > 0 {
			r.catalogTTL = ttl
		}
	}
}

func NewRedisAdapter(client *redis.Client, opts ...RedisOption) *RedisAdapter {
	r := &RedisAdapter{
		client:         client,
		idempotencyTTL: defaultIdempotencyKeyTTL,
		catalogTTL:     defaultCatalogTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) GetConcerts(ctx context.Context) ([]domain.Concert, bool, error) {
	raw, err := r.client.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var concerts []domain.Concert
	if err := json.Unmarshal(raw, &concerts); err != nil {
		return nil, false, fmt.Errorf("decode cached catalog: %w", err)
	}

	return concerts, true, nil
}

func (r *RedisAdapter) SetConcerts(ctx context.Context, concerts []domain.Concert) error {
	raw, err := json.Marshal(concerts)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	return r.client.Set(ctx, catalogKey, raw, r.catalogTTL).Err()
}

func (r *RedisAdapter) InvalidateConcerts(ctx context.Context) error {
	return r.client.Del(ctx, catalogKey).Err()
}
