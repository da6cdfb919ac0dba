package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

// ErrNoSnapshot is returned when no task list has been fetched for a user.
var ErrNoSnapshot = errors.New("no task snapshot")

// snapshotRow mirrors a snapshot_tasks row.
type snapshotRow struct {
	TaskID      int    `db:"task_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	IsCompleted int    `db:"is_completed"`
	CreatedAt   string `db:"created_at"`
}

// ReplaceTaskSnapshot discards the previous snapshot for userID and
// stores tasks in order, in a single transaction.
func (s *SQLiteStore) ReplaceTaskSnapshot(
	ctx context.Context,
	userID int,
	tasks []model.Task,
	fetchedAt time.Time,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Cascades to snapshot_tasks.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM task_snapshots WHERE user_id = ?", userID,
	); err != nil {
		return fmt.Errorf("clearing snapshot for user %d: %w", userID, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO task_snapshots (user_id, fetched_at) VALUES (?, ?)",
		userID, fetchedAt.UTC(),
	); err != nil {
		return fmt.Errorf("creating snapshot for user %d: %w", userID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO snapshot_tasks (
			user_id, position, task_id, title, description, is_completed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		_, err := stmt.ExecContext(ctx,
			userID, i, t.ID, t.Title, t.Description,
			boolToInt(t.IsCompleted), t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("storing task %d in snapshot: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetTaskSnapshot returns the snapshot for userID in stored order.
func (s *SQLiteStore) GetTaskSnapshot(
	ctx context.Context,
	userID int,
) (*Snapshot, error) {
	var fetchedAt time.Time
	err := s.db.GetContext(ctx, &fetchedAt,
		"SELECT fetched_at FROM task_snapshots WHERE user_id = ?", userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("getting snapshot for user %d: %w", userID, err)
	}

	var rows []snapshotRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT task_id, title, description, is_completed, created_at
		FROM snapshot_tasks WHERE user_id = ? ORDER BY position`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot tasks for user %d: %w", userID, err)
	}

	snap := &Snapshot{
		UserID:    userID,
		Tasks:     make([]model.Task, 0, len(rows)),
		FetchedAt: fetchedAt,
	}
	for _, r := range rows {
		snap.Tasks = append(snap.Tasks, model.Task{
			ID:          r.TaskID,
			UserID:      userID,
			Title:       r.Title,
			Description: r.Description,
			IsCompleted: r.IsCompleted != 0,
			CreatedAt:   r.CreatedAt,
		})
	}

	return snap, nil
}

// DeleteTaskSnapshot removes the snapshot for userID, if any.
func (s *SQLiteStore) DeleteTaskSnapshot(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM task_snapshots WHERE user_id = ?", userID,
	)
	if err != nil {
		return fmt.Errorf("deleting snapshot for user %d: %w", userID, err)
	}
	return nil
}
