package database

import (
	"context"
	"log"
	"time"
)

// Workload is a timed benchmark executed against an open Handle. Setup and
// Teardown bracket Run; Teardown must be safe to call even when Run failed
// partway through.
type Workload interface {
	Setup(ctx context.Context, h *Handle, logger *log.Logger) error
	Run(ctx context.Context, h *Handle, phaseBudget time.Duration, logger *log.Logger) (*Result, error)
	Teardown(ctx context.Context, h *Handle, logger *log.Logger) error
}

// Result summarizes one workload run. It is immutable once produced; the
// JSON form is both the HTTP response body and the cached payload.
type Result struct {
	DBSizeInMB          float64 `json:"dbSizeInMb"`
	TotalOperations     int64   `json:"totalOperations"`
	OperationsPerSecond int64   `json:"operationsPerSecond"`
	Writes              int64   `json:"writes"`
	WritesPerSecond     int64   `json:"writesPerSecond"`
	Reads               int64   `json:"reads"`
	ReadsPerSecond      int64   `json:"readsPerSecond"`
	Updates             int64   `json:"updates"`
	UpdatesPerSecond    int64   `json:"updatesPerSecond"`
	Deletes             int64   `json:"deletes"`
	DeletesPerSecond    int64   `json:"deletesPerSecond"`
	Duration            float64 `json:"duration"`
}
