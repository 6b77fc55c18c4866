// Package store persists the unified feed, contact profiles, platform
// credentials, and sync state in a single-writer SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// FeedStore wraps the SQLite connection backing the inbox feed.
type FeedStore struct {
	conn *sql.DB
}

// Open creates the SQLite connection and applies all pending migrations.
func Open(path string) (*FeedStore, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	migrationsFS, err := fs.Sub(MigrationFS, "migrations")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: migrations sub-fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, conn, migrationsFS)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: create migration provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: apply migrations: %w", err)
	}

	return &FeedStore{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *FeedStore) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying *sql.DB for packages that need direct access
// (e.g. the webapi health check's ping).
func (s *FeedStore) Conn() *sql.DB {
	return s.conn
}
