package testutil

import (
	"testing"

	"github.com/nhle/tasksync/internal/session"
	"github.com/nhle/tasksync/internal/store"
)

// NewTestStore opens a private ":memory:" database migrated to the latest
// schema: the kv table behind the sqlite session backend and the
// task_snapshots/snapshot_tasks pair behind `list --cached`. The store is
// closed when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing in-memory store: %v", err)
		}
	})
	return db
}

// NewTestSessionStore returns a session.Store persisting to the kv table
// of a fresh test database, along with that database for inspection.
func NewTestSessionStore(t *testing.T) (*session.Store, *store.SQLiteStore) {
	t.Helper()

	db := NewTestStore(t)
	return session.NewStore(db, nil), db
}
