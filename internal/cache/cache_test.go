package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"sqlite-benchmark/internal/database"
)

type stubWorkload struct {
	runs   int
	result database.Result
	err    error
}

func (s *stubWorkload) Setup(ctx context.Context, h *database.Handle, logger *log.Logger) error {
	return nil
}

func (s *stubWorkload) Run(ctx context.Context, h *database.Handle, phaseBudget time.Duration, logger *log.Logger) (*database.Result, error) {
	s.runs++
	if s.err != nil {
		return nil, s.err
	}
	r := s.result
	return &r, nil
}

func (s *stubWorkload) Teardown(ctx context.Context, h *database.Handle, logger *log.Logger) error {
	return nil
}

func newTestCache(t *testing.T, stub *stubWorkload) *Cache {
	t.Helper()
	h, err := database.Open(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return New(h, stub, time.Millisecond, log.New(io.Discard, "", 0))
}

func cacheRows(t *testing.T, c *Cache) int64 {
	t.Helper()
	var n int64
	if err := c.handle.DB().QueryRow("SELECT COUNT(*) FROM benchmark_results").Scan(&n); err != nil {
		t.Fatalf("count cache rows: %v", err)
	}
	return n
}

func TestGetOrRunCachesWithinWindow(t *testing.T) {
	stub := &stubWorkload{result: database.Result{Writes: 42, TotalOperations: 42, DBSizeInMB: 0.5, Duration: 1.23}}
	c := newTestCache(t, stub)
	ctx := context.Background()

	first, err := c.GetOrRun(ctx)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := c.GetOrRun(ctx)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	if stub.runs != 1 {
		t.Fatalf("workload ran %d times, want 1", stub.runs)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("cached result changed: %s vs %s", a, b)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
	if n := cacheRows(t, c); n != 1 {
		t.Fatalf("cache rows = %d, want 1", n)
	}
}

func TestGetOrRunFreshnessBoundary(t *testing.T) {
	stub := &stubWorkload{result: database.Result{Writes: 1, TotalOperations: 1}}
	c := newTestCache(t, stub)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }
	if _, err := c.GetOrRun(ctx); err != nil {
		t.Fatalf("initial run: %v", err)
	}
	if stub.runs != 1 {
		t.Fatalf("workload ran %d times, want 1", stub.runs)
	}

	// One second inside the window: still served from the cache.
	c.now = func() time.Time { return base.Add(c.window - time.Second) }
	if _, err := c.GetOrRun(ctx); err != nil {
		t.Fatalf("fresh read: %v", err)
	}
	if stub.runs != 1 {
		t.Fatalf("fresh read re-ran the workload (%d runs)", stub.runs)
	}

	// One second past the window: a new run replaces the row.
	c.now = func() time.Time { return base.Add(c.window + time.Second) }
	if _, err := c.GetOrRun(ctx); err != nil {
		t.Fatalf("stale read: %v", err)
	}
	if stub.runs != 2 {
		t.Fatalf("stale read did not re-run the workload (%d runs)", stub.runs)
	}
	if n := cacheRows(t, c); n != 1 {
		t.Fatalf("cache rows = %d, want 1 after refresh", n)
	}
}

func TestGetOrRunPropagatesWorkloadError(t *testing.T) {
	stub := &stubWorkload{err: errors.New("disk full")}
	c := newTestCache(t, stub)

	if _, err := c.GetOrRun(context.Background()); err == nil {
		t.Fatalf("expected workload error to surface")
	}
	if n := cacheRows(t, c); n != 0 {
		t.Fatalf("failed run stored %d cache rows, want 0", n)
	}
}
