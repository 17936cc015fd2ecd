package runner

import (
	"context"
	"log"
	"time"

	"sqlite-benchmark/internal/database"
)

func Run(ctx context.Context, h *database.Handle, workload database.Workload, phaseBudget time.Duration, logger *log.Logger) (*database.Result, error) {
	// Setup and teardown (if any) are handled by the caller.

	result, err := workload.Run(ctx, h, phaseBudget, logger)
	if err != nil {
		return nil, err
	}

	return result, nil
}
