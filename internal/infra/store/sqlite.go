package store

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore persists blobs in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite db")
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous=NORMAL",
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
		pragmas = pragmas[1:]
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "failed to apply pragma %q", pragma)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the value at key.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, ErrClosed
	}

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read %s", key)
	}
	return value, true, nil
}

// Set upserts value at key.
func (s *SQLiteStore) Set(key string, value []byte) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "failed to write %s", key)
	}
	return nil
}

// Remove deletes key.
func (s *SQLiteStore) Remove(key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "failed to remove %s", key)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
