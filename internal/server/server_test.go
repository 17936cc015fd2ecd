package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sqlite-benchmark/internal/cache"
	"sqlite-benchmark/internal/database"
	"sqlite-benchmark/internal/workloads/crud"
)

func newTestServer(t *testing.T) (*httptest.Server, *database.Handle) {
	t.Helper()
	h, err := database.Open(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	logger := log.New(io.Discard, "", 0)
	c := cache.New(h, &crud.Test{}, 100*time.Millisecond, logger)
	ts := httptest.NewServer(New(c, t.TempDir(), logger).Handler())
	t.Cleanup(ts.Close)
	return ts, h
}

func getBody(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestRunTestEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := getBody(t, ts.URL+"/api/runTest")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body: %s", status, body)
	}

	var result database.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum := result.Writes + result.Reads + result.Updates + result.Deletes; sum != result.TotalOperations {
		t.Fatalf("totalOperations = %d, phases sum to %d", result.TotalOperations, sum)
	}
	if result.Writes < 1 {
		t.Fatalf("expected at least one write, got %d", result.Writes)
	}

	// Within the freshness window the second response is byte-identical.
	status, second := getBody(t, ts.URL+"/api/runTest")
	if status != http.StatusOK {
		t.Fatalf("second status = %d", status)
	}
	if string(second) != string(body) {
		t.Fatalf("cached response changed:\n%s\n%s", body, second)
	}
}

func TestGetSpecsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := getBody(t, ts.URL+"/api/getSpecs")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body: %s", status, body)
	}

	var m map[string]string
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(m) == 0 {
		t.Fatalf("expected a non-empty specs mapping")
	}
	if _, ok := m["CPU Cores"]; !ok {
		t.Fatalf("missing CPU Cores in %v", m)
	}
}

func TestRunTestSurfacesErrors(t *testing.T) {
	ts, h := newTestServer(t)

	// Closing the handle makes every statement fail; the facade must
	// answer 500 with a descriptive body.
	h.Close()

	status, body := getBody(t, ts.URL+"/api/runTest")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	var e struct {
		Error string `json:"error"`
		Stack string `json:"stack"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Error == "" {
		t.Fatalf("expected an error message, got %s", body)
	}
}
