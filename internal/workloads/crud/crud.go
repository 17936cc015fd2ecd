package crud

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"

	"sqlite-benchmark/internal/database"
)

const (
	// BatchSize is the number of rows inserted per write-phase transaction.
	BatchSize = 100

	// DefaultPhaseBudget bounds each of the four phases.
	DefaultPhaseBudget = 5 * time.Second
)

// Test is the four-phase CRUD workload: timed bursts of inserts, reads,
// updates and deletes against the records table, strictly in sequence.
// Every read, update and delete targets an identifier produced by the
// current run's write phase.
type Test struct {
	sessionTag string
}

func (t *Test) Setup(ctx context.Context, h *database.Handle, logger *log.Logger) error {
	// Schema creation happened when the handle opened; verify the records
	// table is usable before the timed phases start.
	var leftover int64
	if err := h.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&leftover); err != nil {
		return fmt.Errorf("records table unavailable: %w", err)
	}
	if leftover > 0 && logger != nil {
		logger.Printf("records table starts with %d leftover rows", leftover)
	}
	return nil
}

func (t *Test) Run(ctx context.Context, h *database.Handle, phaseBudget time.Duration, logger *log.Logger) (*database.Result, error) {
	db := h.DB()
	t.sessionTag = uuid.New().String()

	ids := make([]int64, 0, 4096)
	started := time.Now()

	// Write phase: one transaction per batch until the budget elapses.
	writeHist := newLatencyHist()
	var writes int64
	writeStart := time.Now()
	for time.Since(writeStart) < phaseBudget {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("write phase: begin: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO records (author, content, session_tag, created_at) VALUES (?, ?, ?, ?)")
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("write phase: prepare: %w", err)
		}
		for i := 0; i < BatchSize; i++ {
			opStart := time.Now()
			res, err := stmt.ExecContext(ctx,
				randomString(8, 16), randomString(80, 160), t.sessionTag, time.Now().Unix())
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return nil, fmt.Errorf("write phase: insert: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				stmt.Close()
				tx.Rollback()
				return nil, fmt.Errorf("write phase: last insert id: %w", err)
			}
			writeHist.RecordValue(time.Since(opStart).Microseconds())
			ids = append(ids, id)
			writes++
		}
		stmt.Close()
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("write phase: commit: %w", err)
		}
	}
	writeElapsed := time.Since(writeStart)

	// Read phase: uniformly random point lookups over the identifiers the
	// write phase produced. Skipped outright when there are none.
	readHist := newLatencyHist()
	var reads int64
	readStart := time.Now()
	for len(ids) > 0 && time.Since(readStart) < phaseBudget {
		id := ids[rand.Intn(len(ids))]
		opStart := time.Now()
		var (
			author, content, tag string
			createdAt            int64
		)
		err := db.QueryRowContext(ctx,
			"SELECT author, content, session_tag, created_at FROM records WHERE id = ?", id).
			Scan(&author, &content, &tag, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("read phase: id %d: %w", id, err)
		}
		readHist.RecordValue(time.Since(opStart).Microseconds())
		reads++
	}
	readElapsed := time.Since(readStart)

	// Update phase: overwrite the content of random known rows.
	updateHist := newLatencyHist()
	var updates int64
	updateStart := time.Now()
	for len(ids) > 0 && time.Since(updateStart) < phaseBudget {
		id := ids[rand.Intn(len(ids))]
		opStart := time.Now()
		if _, err := db.ExecContext(ctx,
			"UPDATE records SET content = ? WHERE id = ?", randomString(80, 160), id); err != nil {
			return nil, fmt.Errorf("update phase: id %d: %w", id, err)
		}
		updateHist.RecordValue(time.Since(opStart).Microseconds())
		updates++
	}
	updateElapsed := time.Since(updateStart)

	// Delete phase: pop from the tail so each identifier is deleted at
	// most once.
	deleteHist := newLatencyHist()
	var deletes int64
	deleteStart := time.Now()
	for len(ids) > 0 && time.Since(deleteStart) < phaseBudget {
		id := ids[len(ids)-1]
		ids = ids[:len(ids)-1]
		opStart := time.Now()
		if _, err := db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("delete phase: id %d: %w", id, err)
		}
		deleteHist.RecordValue(time.Since(opStart).Microseconds())
		deletes++
	}
	deleteElapsed := time.Since(deleteStart)
	totalElapsed := time.Since(started)

	// Remove whatever the delete phase did not reach, so a run never
	// leaves rows the next run has to account for.
	if _, err := db.ExecContext(ctx, "DELETE FROM records WHERE session_tag = ?", t.sessionTag); err != nil {
		return nil, fmt.Errorf("cleanup: %w", err)
	}

	sizeMB, err := h.SizeMB()
	if err != nil {
		return nil, fmt.Errorf("sizing: %w", err)
	}

	if logger != nil {
		logPhase(logger, "write", writeHist, writes, writeElapsed)
		logPhase(logger, "read", readHist, reads, readElapsed)
		logPhase(logger, "update", updateHist, updates, updateElapsed)
		logPhase(logger, "delete", deleteHist, deletes, deleteElapsed)
	}

	total := writes + reads + updates + deletes
	return &database.Result{
		DBSizeInMB:          sizeMB,
		TotalOperations:     total,
		OperationsPerSecond: perSecond(total, 4*phaseBudget),
		Writes:              writes,
		WritesPerSecond:     perSecond(writes, writeElapsed),
		Reads:               reads,
		ReadsPerSecond:      perSecond(reads, readElapsed),
		Updates:             updates,
		UpdatesPerSecond:    perSecond(updates, updateElapsed),
		Deletes:             deletes,
		DeletesPerSecond:    perSecond(deletes, deleteElapsed),
		Duration:            math.Round(totalElapsed.Seconds()*100) / 100,
	}, nil
}

// Teardown removes any rows still carrying the last run's session tag. Run
// already cleans up after itself, so this only matters when Run failed
// partway through a phase.
func (t *Test) Teardown(ctx context.Context, h *database.Handle, logger *log.Logger) error {
	if t.sessionTag == "" {
		return nil
	}
	if _, err := h.DB().ExecContext(ctx,
		"DELETE FROM records WHERE session_tag = ?", t.sessionTag); err != nil {
		return fmt.Errorf("teardown: %w", err)
	}
	return nil
}

// perSecond rounds count/elapsed to the nearest integer, reporting 0 for
// empty phases instead of dividing by zero.
func perSecond(count int64, elapsed time.Duration) int64 {
	if count == 0 || elapsed <= 0 {
		return 0
	}
	return int64(math.Round(float64(count) / elapsed.Seconds()))
}

func newLatencyHist() *hdrhistogram.Histogram {
	// Microsecond latencies between 1µs and 10s.
	return hdrhistogram.New(1, 10_000_000, 3)
}

func logPhase(logger *log.Logger, name string, hist *hdrhistogram.Histogram, count int64, elapsed time.Duration) {
	if count == 0 {
		logger.Printf("%s phase: no operations", name)
		return
	}
	logger.Printf("%s phase: %d ops in %s, avg %.0fµs, max %dµs",
		name, count, elapsed.Round(time.Millisecond), hist.Mean(), hist.Max())
}
