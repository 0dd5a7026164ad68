// Package storage implements the disk cache collaborator named in spec §1
// and §6. It is adapted directly from the teacher's SQLiteStore: same
// database/sql over github.com/mattn/go-sqlite3, same
// open-then-initSchema-with-a-query-list construction, narrowed from the
// teacher's nodes/edges/chunks graph schema down to one table keyed by the
// input-file argument the CLI was invoked with plus its generator settings.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCacheStore implements CacheStore on a local SQLite file.
type SQLiteCacheStore struct {
	db *sql.DB
}

// NewSQLiteCacheStore opens (creating if necessary) a SQLite database at
// path and ensures its schema exists.
func NewSQLiteCacheStore(path string) (*SQLiteCacheStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteCacheStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init cache schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteCacheStore) Close() error { return s.db.Close() }

func (s *SQLiteCacheStore) initSchema() error {
	const q = `CREATE TABLE IF NOT EXISTS compiles (
		key TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		blob JSON NOT NULL
	);`
	_, err := s.db.Exec(q)
	return err
}

// Get implements CacheStore.
func (s *SQLiteCacheStore) Get(ctx context.Context, key, contentHash string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT blob FROM compiles WHERE key = ? AND content_hash = ?`, key, contentHash)
	var blob []byte
	switch err := row.Scan(&blob); err {
	case nil:
		return blob, true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, err
	}
}

// Put implements CacheStore.
func (s *SQLiteCacheStore) Put(ctx context.Context, key, contentHash string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compiles (key, content_hash, blob) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content_hash = excluded.content_hash, blob = excluded.blob
	`, key, contentHash, blob)
	return err
}
