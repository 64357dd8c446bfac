package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/itsyousal/TDHEMS-sub002/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis. It returns (nil, nil) when no address is configured,
// which disables the features built on it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// IdempotencyStore remembers client-supplied idempotency keys for a fixed TTL.
type IdempotencyStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyStore(client redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(scope string, orgID int, key string) string {
	return fmt.Sprintf("idem:%s:%d:%s", scope, orgID, key)
}

// Claim reserves key for this request. It returns false when the key was already
// claimed within the TTL.
func (s *IdempotencyStore) Claim(ctx context.Context, scope string, orgID int, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, idempotencyKey(scope, orgID, key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Forget releases a claimed key so a request that failed before committing can be retried.
func (s *IdempotencyStore) Forget(ctx context.Context, scope string, orgID int, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(scope, orgID, key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
