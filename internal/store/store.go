package store

import (
	"context"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

// Snapshot is the last task collection fetched for a user.
type Snapshot struct {
	UserID    int
	Tasks     []model.Task
	FetchedAt time.Time
}

// SnapshotStore keeps a local copy of each user's most recently fetched
// task list for offline display. It is never a source of truth.
type SnapshotStore interface {
	// ReplaceTaskSnapshot discards any previous snapshot for userID and
	// stores tasks in the given order.
	ReplaceTaskSnapshot(ctx context.Context, userID int, tasks []model.Task, fetchedAt time.Time) error

	// GetTaskSnapshot returns the stored snapshot, or ErrNoSnapshot.
	GetTaskSnapshot(ctx context.Context, userID int) (*Snapshot, error)

	// DeleteTaskSnapshot removes the snapshot for userID, if any.
	DeleteTaskSnapshot(ctx context.Context, userID int) error
}
