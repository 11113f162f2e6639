package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteBusyTimeout is how long a read waits on a writer holding the lock, in ms
const sqliteBusyTimeout = 5000

// SQLiteClient holds a read-only handle on a SQLite database file
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens path read-only, so a mistyped path fails instead of
// creating an empty database. In-memory databases are pinned to one connection.
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")

	db, err := sql.Open("sqlite3", sqliteDSN(path, memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &SQLiteClient{db: db}, nil
}

// sqliteDSN turns a plain path into a read-only file URI with a busy timeout.
// Paths that already carry a query string are passed through untouched.
func sqliteDSN(path string, memory bool) string {
	if memory || strings.Contains(path, "?") {
		return path
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return fmt.Sprintf("%s?mode=ro&_busy_timeout=%d", path, sqliteBusyTimeout)
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}
