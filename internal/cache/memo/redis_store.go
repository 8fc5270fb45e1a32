package memo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xkofi/bundlebear-api/internal/cache/redisstore"
)

// RedisStore adapts the Redis client to the Store contract, bounding every
// operation with a short timeout so a slow cache cannot stall requests.
type RedisStore struct {
	cli     *redisstore.Client
	timeout time.Duration
}

func NewRedisStore(cli *redisstore.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{cli: cli, timeout: timeout}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	v, err := s.cli.Get(ctx, key)
	if errors.Is(err, redisstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return v, true, nil
}

// Set detaches from the request context: a canceled request must not lose a
// computation that already finished.
func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	wctx, cancel := s.withTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.cli.Set(wctx, key, val, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}
