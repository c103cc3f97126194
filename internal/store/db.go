package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go driver, registered as "sqlite"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS components (
	uuid                     TEXT PRIMARY KEY,
	organization_uuid        TEXT NOT NULL DEFAULT '',
	kee                      TEXT NOT NULL,
	scope                    TEXT NOT NULL,
	qualifier                TEXT NOT NULL,
	path                     TEXT,
	language                 TEXT,
	project_uuid             TEXT NOT NULL,
	module_uuid              TEXT,
	module_uuid_path         TEXT,
	main_branch_project_uuid TEXT,
	enabled                  INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS components_project_uuid ON components(project_uuid);

CREATE TABLE IF NOT EXISTS rules (
	uuid               TEXT PRIMARY KEY,
	plugin_name        TEXT NOT NULL,
	plugin_rule_key    TEXT NOT NULL,
	language           TEXT,
	security_standards TEXT
);

CREATE TABLE IF NOT EXISTS issues (
	kee                 TEXT PRIMARY KEY,
	rule_uuid           TEXT NOT NULL,
	component_uuid      TEXT NOT NULL,
	project_uuid        TEXT NOT NULL,
	severity            TEXT,
	status              TEXT,
	resolution          TEXT,
	issue_type          TEXT,
	assignee            TEXT,
	author_login        TEXT,
	line                INTEGER,
	effort              INTEGER,
	tags                TEXT,
	issue_creation_date INTEGER,
	issue_update_date   INTEGER,
	issue_close_date    INTEGER
);
CREATE INDEX IF NOT EXISTS issues_project_uuid ON issues(project_uuid);

CREATE TABLE IF NOT EXISTS es_queue (
	uuid        TEXT PRIMARY KEY,
	doc_type    TEXT NOT NULL,
	doc_id      TEXT NOT NULL,
	doc_id_type TEXT,
	doc_routing TEXT,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS es_queue_created_at ON es_queue(created_at);
`

// Options configures Open.
type Options struct {
	// Driver is DriverModernc (default) or DriverCgo.
	Driver      string
	BusyTimeout time.Duration
	CacheMB     int
}

// DB is the SQLite database holding issues and the recovery queue.
// It uses a single connection, so sessions of the same DB serialize:
// a goroutine must not open a second session while its first one holds a transaction.
type DB struct {
	db     *sql.DB
	path   string
	driver string

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the database at path. An empty path opens an in-memory database.
func Open(path string, opts Options) (*DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCgo {
		return nil, serrors.New(serrors.ErrCodeStoreOpen, fmt.Sprintf("unsupported sqlite driver %q", driver), nil)
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	cacheMB := opts.CacheMB
	if cacheMB <= 0 {
		cacheMB = 64
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to create store directory", err)
		}
		dsn = path
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to open store", err)
	}

	// One connection: an in-memory database lives in its connection, and a single
	// writer avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Pragmas run as statements since DSN parameters differ between the two drivers.
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to set pragma", err).
				WithDetail("pragma", pragma)
		}
	}

	if path != "" {
		var result string
		if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil || result != "ok" {
			_ = db.Close()
			if err == nil {
				err = fmt.Errorf("quick_check: %s", result)
			}
			return nil, serrors.New(serrors.ErrCodeCorruptIndex, "store integrity check failed", err).
				WithDetail("path", path).
				WithSuggestion("restore the store from a backup; the search index can be rebuilt with `issuesync index`")
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, serrors.New(serrors.ErrCodeStoreOpen, "failed to initialize schema", err)
	}

	slog.Debug("store_opened",
		slog.String("path", path),
		slog.String("driver", driver))

	return &DB{db: db, path: path, driver: driver}, nil
}

func (d *DB) Path() string   { return d.path }
func (d *DB) Driver() string { return d.driver }

// NewSession returns a session whose transaction begins on first use.
func (d *DB) NewSession() *Session {
	return &Session{db: d}
}

// Close closes the database. It is safe to call more than once.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// Session is a unit of work over the store. Reads and writes made through a
// session share one transaction, begun lazily. Commit and Rollback end the current
// transaction and leave the session usable: the next call begins a new one.
type Session struct {
	db *DB
	tx *sql.Tx
}

// querier returns the session transaction, beginning it if needed.
func (s *Session) querier(ctx context.Context) (Querier, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeStoreQuery, "failed to begin transaction", err)
	}
	s.tx = tx
	return tx, nil
}

// InTransaction reports whether the session holds an open transaction.
func (s *Session) InTransaction() bool {
	return s.tx != nil
}

// Commit commits the current transaction, if any.
func (s *Session) Commit() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return serrors.New(serrors.ErrCodeStoreQuery, "failed to commit transaction", err)
	}
	return nil
}

// Rollback discards the current transaction, if any.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return serrors.New(serrors.ErrCodeStoreQuery, "failed to roll back transaction", err)
	}
	return nil
}

// Close rolls back anything not committed.
func (s *Session) Close() error {
	return s.Rollback()
}
