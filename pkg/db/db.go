// Package db provides shared SQLite database utilities for the
// optional SQLite index cache backend.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Open opens or creates a SQLite database at the given path with
// pragmas suitable for a single-writer cache.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	database, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := Configure(ctx, database); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return database, nil
}

// Configure sets up SQLite pragmas for WAL mode operation.
func Configure(ctx context.Context, database *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := database.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	database.SetMaxIdleConns(1)
	database.SetMaxOpenConns(1)

	var journalMode string
	if err := database.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}

	return nil
}
