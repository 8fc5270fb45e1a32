// Package memo implements the get-or-compute layer in front of the warehouse.
package memo

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/0xkofi/bundlebear-api/internal/observability"
)

// Store is the shared cache backend. Get reports (value, found, error); a
// backend error means unavailable, not miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeMiss     Outcome = "miss"
	OutcomeDegraded Outcome = "degraded"
)

// l1MaxTTL caps the node-local cache; the shared store stays the source of
// truth across instances.
const l1MaxTTL = time.Minute

type Memoizer struct {
	logger *slog.Logger
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	l1     *expirable.LRU[string, []byte]
}

func New(logger *slog.Logger, store Store, ttl time.Duration, l1Size int) *Memoizer {
	m := &Memoizer{logger: logger, store: store, ttl: ttl}
	if l1Size > 0 {
		l1TTL := ttl
		if l1TTL > l1MaxTTL {
			l1TTL = l1MaxTTL
		}
		m.l1 = expirable.NewLRU[string, []byte](l1Size, nil, l1TTL)
	}
	return m
}

// GetOrCompute returns the cached value under key, or runs compute and stores
// the result with the configured TTL. Concurrent misses on the same key
// collapse into one computation. A failing cache backend degrades to direct
// computation and never fails the request; a failing compute caches nothing.
func (m *Memoizer) GetOrCompute(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, Outcome, error) {
	if m.l1 != nil {
		if v, ok := m.l1.Get(key); ok {
			observability.IncCacheHit()
			return v, OutcomeHit, nil
		}
	}

	degraded := false
	v, found, err := m.store.Get(ctx, key)
	switch {
	case err != nil:
		degraded = true
		observability.IncCacheDegraded()
		m.logger.WarnContext(ctx, "cache read failed, computing directly", "key", key, "err", err)
	case found:
		m.l1Add(key, v)
		observability.IncCacheHit()
		return v, OutcomeHit, nil
	}

	res, cerr, _ := m.group.Do(key, func() (any, error) {
		// another caller may have filled the store while we waited
		if !degraded {
			if v, found, err := m.store.Get(ctx, key); err == nil && found {
				m.l1Add(key, v)
				return v, nil
			}
		}
		// one recorded miss per upstream computation, however many
		// callers share it
		if !degraded {
			observability.IncCacheMiss()
		}
		body, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.fill(ctx, key, body)
		return body, nil
	})
	if cerr != nil {
		return nil, OutcomeMiss, cerr
	}

	body := res.([]byte)
	outcome := OutcomeMiss
	if degraded {
		outcome = OutcomeDegraded
	}
	return body, outcome, nil
}

func (m *Memoizer) l1Add(key string, val []byte) {
	if m.l1 != nil {
		m.l1.Add(key, val)
	}
}

func (m *Memoizer) fill(ctx context.Context, key string, val []byte) {
	if err := m.store.Set(ctx, key, val, m.ttl); err != nil {
		observability.IncCacheDegraded()
		m.logger.WarnContext(ctx, "cache write failed", "key", key, "err", err)
	}
	m.l1Add(key, val)
}
