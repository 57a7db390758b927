package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// busyTimeoutMillis bounds how long a writer waits on another connection's lock.
const busyTimeoutMillis = 5000

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist. Pragmas go through the DSN so that every
// pooled connection gets them, not only the first.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := validateSQLiteFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := BootstrapSQLite(pctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DSN builds the modernc.org/sqlite connection string for path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)",
		path, busyTimeoutMillis)
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
  message_id   TEXT PRIMARY KEY,
  from_number  TEXT NOT NULL,
  to_number    TEXT NOT NULL,
  ts           TEXT NOT NULL,
  text         TEXT,
  created_at   TEXT NOT NULL,
  content_hash TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS messages_from_number_idx ON messages(from_number);`,
		`CREATE INDEX IF NOT EXISTS messages_ts_idx ON messages(ts, message_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
