package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/tasksync/internal/session"
)

// Get returns the value stored under key, or session.ErrNotFound.
func (s *SQLiteStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.Get(&value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Returns session.ErrNotFound when nothing was stored.
func (s *SQLiteStore) Remove(key string) error {
	result, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return session.ErrNotFound
	}
	return nil
}
