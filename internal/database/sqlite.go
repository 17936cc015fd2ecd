package database

import (
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"os"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// Connection tuning is a fixed profile applied on every open; it is not
// user-configurable.
const (
	busyTimeoutMS = 5000
	cacheSizeKiB  = -64000 // negative value: size in KiB rather than pages
	mmapSizeBytes = 268435456
)

const schema = `
CREATE TABLE IF NOT EXISTS benchmark_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	payload TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_benchmark_results_created_at ON benchmark_results (created_at);

CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author TEXT NOT NULL,
	content TEXT NOT NULL,
	session_tag TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records (created_at);
`

const driverName = "sqlite3_benchmark"

func init() {
	// The pool opens connections lazily, so pragmas without a DSN form
	// must be applied through the connect hook to reach every connection.
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range []string{
				fmt.Sprintf("PRAGMA cache_size = %d", cacheSizeKiB),
				"PRAGMA temp_store = MEMORY",
				fmt.Sprintf("PRAGMA mmap_size = %d", mmapSizeBytes),
			} {
				if _, err := conn.Exec(pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			return nil
		},
	})
}

// Handle owns the connection to one database file. Handles are opened once
// per path and reused; they are never implicitly reopened mid-process.
type Handle struct {
	db   *sql.DB
	path string
}

var (
	openMu  sync.Mutex
	handles = map[string]*Handle{}
)

// Open returns the handle for path, opening and configuring the file on
// first use. A second Open for the same path returns the existing handle.
func Open(path string) (*Handle, error) {
	openMu.Lock()
	defer openMu.Unlock()

	if h, ok := handles[path]; ok {
		return h, nil
	}

	params := url.Values{
		"_journal_mode": {"WAL"},
		"_synchronous":  {"NORMAL"},
		"_busy_timeout": {fmt.Sprint(busyTimeoutMS)},
		"_foreign_keys": {"on"},
	}
	db, err := sql.Open(driverName, fmt.Sprintf("file:%s?%s", path, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	h := &Handle{db: db, path: path}
	handles[path] = h
	return h, nil
}

func (h *Handle) DB() *sql.DB { return h.db }

func (h *Handle) Path() string { return h.path }

// SizeMB reports the on-disk size of the database in megabytes, rounded to
// two decimals. Under WAL mode data not yet checkpointed lives in the -wal
// file next to the main one, so both are counted.
func (h *Handle) SizeMB() (float64, error) {
	info, err := os.Stat(h.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", h.path, err)
	}
	size := info.Size()
	if wal, err := os.Stat(h.path + "-wal"); err == nil {
		size += wal.Size()
	}
	return math.Round(float64(size)/(1024*1024)*100) / 100, nil
}

// Close releases the handle and forgets it, so a later Open for the same
// path starts over.
func (h *Handle) Close() error {
	openMu.Lock()
	delete(handles, h.path)
	openMu.Unlock()
	return h.db.Close()
}
