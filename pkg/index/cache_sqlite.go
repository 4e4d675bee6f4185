package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillcortex/pkg/db"
	skilltypes "github.com/jingkaihe/skillcortex/pkg/types/skill"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS index_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	generation INTEGER NOT NULL,
	built_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	data TEXT NOT NULL
);
`

// SQLiteCacheStore persists the index in a SQLite database. Saves run
// in a single transaction, so a crash mid-save leaves the previous
// cache intact.
type SQLiteCacheStore struct {
	dbPath   string
	database *sqlx.DB
}

// NewSQLiteCacheStore opens (or creates) the cache database.
func NewSQLiteCacheStore(ctx context.Context, dbPath string) (*SQLiteCacheStore, error) {
	database, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := database.ExecContext(ctx, sqliteSchema); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to initialize cache schema")
	}
	return &SQLiteCacheStore{dbPath: dbPath, database: database}, nil
}

type skillRow struct {
	ID          string `db:"id"`
	Fingerprint string `db:"fingerprint"`
	Data        string `db:"data"`
}

// Load reads the full cache. An empty database yields (nil, nil).
func (s *SQLiteCacheStore) Load(ctx context.Context) (*CacheContents, error) {
	var generation int64
	var builtAt string
	err := s.database.QueryRowContext(ctx, "SELECT generation, built_at FROM index_meta WHERE id = 1").Scan(&generation, &builtAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &CorruptError{Path: s.dbPath, Cause: err}
	}

	builtAtTime, err := time.Parse(time.RFC3339Nano, builtAt)
	if err != nil {
		return nil, &CorruptError{Path: s.dbPath, Cause: err}
	}

	var rows []skillRow
	if err := s.database.SelectContext(ctx, &rows, "SELECT id, fingerprint, data FROM skills"); err != nil {
		return nil, &CorruptError{Path: s.dbPath, Cause: err}
	}

	entries := make(map[string]*skilltypes.Entry, len(rows))
	for _, row := range rows {
		var entry skilltypes.Entry
		if err := json.Unmarshal([]byte(row.Data), &entry); err != nil {
			return nil, &CorruptError{Path: s.dbPath, Cause: err}
		}
		entries[row.ID] = &entry
	}

	return &CacheContents{
		Generation: generation,
		BuiltAt:    builtAtTime,
		Entries:    entries,
	}, nil
}

// Save replaces the cached index in one transaction.
func (s *SQLiteCacheStore) Save(ctx context.Context, contents *CacheContents) error {
	tx, err := s.database.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin cache transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM skills"); err != nil {
		return errors.Wrap(err, "failed to clear cached skills")
	}

	for id, entry := range contents.Entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal entry %s", id)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO skills (id, fingerprint, data) VALUES (?, ?, ?)",
			id, entry.Fingerprint, string(data),
		); err != nil {
			return errors.Wrapf(err, "failed to insert entry %s", id)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_meta (id, generation, built_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET generation = excluded.generation, built_at = excluded.built_at`,
		contents.Generation, contents.BuiltAt.Format(time.RFC3339Nano),
	); err != nil {
		return errors.Wrap(err, "failed to update cache metadata")
	}

	return errors.Wrap(tx.Commit(), "failed to commit cache transaction")
}

// Close releases the database handle.
func (s *SQLiteCacheStore) Close() error {
	return s.database.Close()
}
