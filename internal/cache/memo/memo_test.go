package memo

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xkofi/bundlebear-api/internal/logger"
	"github.com/0xkofi/bundlebear-api/internal/metrics"
	"github.com/0xkofi/bundlebear-api/internal/observability"
)

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
	gets   int
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = val
	s.ttls[key] = ttl
	return nil
}

func testLogger() *slog.Logger {
	nop := zerolog.Nop()
	return logger.NewSlog(&nop)
}

func TestHit_ComputeNotInvoked(t *testing.T) {
	st := newFakeStore()
	st.data["k"] = []byte(`{"cached":true}`)
	m := New(testLogger(), st, time.Hour, 0)

	v, outcome, err := m.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		t.Fatal("compute must not run on a hit")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if outcome != OutcomeHit {
		t.Fatalf("outcome=%s, want hit", outcome)
	}
	if string(v) != `{"cached":true}` {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestMiss_ComputesOnceAndStoresWithTTL(t *testing.T) {
	st := newFakeStore()
	m := New(testLogger(), st, 6*time.Hour, 0)

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"fresh":1}`), nil
	}

	v, outcome, err := m.GetOrCompute(context.Background(), "k", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if outcome != OutcomeMiss || string(v) != `{"fresh":1}` {
		t.Fatalf("outcome=%s value=%q", outcome, v)
	}
	if calls != 1 {
		t.Fatalf("compute calls=%d, want 1", calls)
	}
	if got := st.ttls["k"]; got != 6*time.Hour {
		t.Fatalf("stored ttl=%v, want 6h", got)
	}

	// repeat within TTL serves the byte-identical cached value
	v2, outcome2, err := m.GetOrCompute(context.Background(), "k", compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if outcome2 != OutcomeHit || string(v2) != string(v) {
		t.Fatalf("second call outcome=%s value=%q", outcome2, v2)
	}
	if calls != 1 {
		t.Fatalf("compute ran again on a hit: calls=%d", calls)
	}
}

func TestSingleFlight_ConcurrentMissesShareOneComputation(t *testing.T) {
	st := newFakeStore()
	m := New(testLogger(), st, time.Hour, 0)

	var calls int
	var callsMu sync.Mutex
	gate := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		callsMu.Lock()
		calls++
		callsMu.Unlock()
		<-gate
		return []byte("shared"), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := m.GetOrCompute(context.Background(), "k", compute)
			if err != nil {
				t.Errorf("GetOrCompute: %v", err)
				return
			}
			results[i] = string(v)
		}()
	}

	// let the callers pile up behind the in-flight computation
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	callsMu.Lock()
	defer callsMu.Unlock()
	if calls != 1 {
		t.Fatalf("compute calls=%d, want 1", calls)
	}
	for i, r := range results {
		if r != "shared" {
			t.Fatalf("caller %d got %q", i, r)
		}
	}
}

func TestSingleFlight_ConcurrentMissesRecordOneMiss(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer())

	st := newFakeStore()
	m := New(testLogger(), st, time.Hour, 0)

	gate := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		<-gate
		return []byte("shared"), nil
	}

	const n = 8
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := m.GetOrCompute(context.Background(), "k", compute); err != nil {
				t.Errorf("GetOrCompute: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()
	if !strings.Contains(body, `cache_results_total{outcome="miss"} 1`) {
		t.Fatalf("want exactly one recorded miss for one shared computation; got:\n%s", body)
	}
}

func TestCacheReadFailure_DegradesToDirectComputation(t *testing.T) {
	st := newFakeStore()
	st.getErr = errors.New("connection refused")
	st.setErr = errors.New("connection refused")
	m := New(testLogger(), st, time.Hour, 0)

	v, outcome, err := m.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("direct"), nil
	})
	if err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	if outcome != OutcomeDegraded {
		t.Fatalf("outcome=%s, want degraded", outcome)
	}
	if string(v) != "direct" {
		t.Fatalf("value=%q", v)
	}
}

func TestCacheWriteFailure_StillServes(t *testing.T) {
	st := newFakeStore()
	st.setErr = errors.New("write timeout")
	m := New(testLogger(), st, time.Hour, 0)

	v, _, err := m.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil || string(v) != "ok" {
		t.Fatalf("v=%q err=%v", v, err)
	}
}

func TestComputeFailure_NothingCached(t *testing.T) {
	st := newFakeStore()
	m := New(testLogger(), st, time.Hour, 0)

	wantErr := errors.New("warehouse down")
	_, _, err := m.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err=%v, want %v", err, wantErr)
	}
	if st.sets != 0 {
		t.Fatalf("failed computation must not be cached, sets=%d", st.sets)
	}

	// the failure is not memoized either
	v, _, err := m.GetOrCompute(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("recovered"), nil
	})
	if err != nil || string(v) != "recovered" {
		t.Fatalf("v=%q err=%v", v, err)
	}
}

func TestL1_ServesWithoutTouchingStore(t *testing.T) {
	st := newFakeStore()
	m := New(testLogger(), st, time.Hour, 16)

	compute := func(context.Context) ([]byte, error) { return []byte("x"), nil }

	if _, _, err := m.GetOrCompute(context.Background(), "k", compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	st.mu.Lock()
	getsAfterFill := st.gets
	st.mu.Unlock()

	v, outcome, err := m.GetOrCompute(context.Background(), "k", compute)
	if err != nil || outcome != OutcomeHit || string(v) != "x" {
		t.Fatalf("outcome=%s v=%q err=%v", outcome, v, err)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gets != getsAfterFill {
		t.Fatalf("L1 hit still touched the store: gets %d -> %d", getsAfterFill, st.gets)
	}
}
