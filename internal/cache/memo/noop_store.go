package memo

import (
	"context"
	"time"
)

// NoopStore is used when no shared cache is reachable at startup: every
// lookup misses and writes are discarded, so the service still answers by
// computing directly.
type NoopStore struct{}

func (NoopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
