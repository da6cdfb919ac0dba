// Package tasks keeps a local copy of one user's task list in step with
// the remote service.
//
// Mutations only tell the server. They never patch the local collection;
// the collection changes solely by being replaced with a fresh fetch.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
)

// Validation errors returned before a request is sent.
var (
	ErrEmptyTitle = errors.New("task title must not be empty")
	ErrNoOwner    = errors.New("task has no owning user")
)

// Client performs list, create, and delete calls and holds the most
// recently fetched collection.
type Client struct {
	api       *api.Client
	logger    *slog.Logger
	now       func() time.Time
	snapshots store.SnapshotStore

	mu    sync.RWMutex
	tasks []model.Task
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSnapshots mirrors every successful fetch into s.
func WithSnapshots(s store.SnapshotStore) Option {
	return func(c *Client) { c.snapshots = s }
}

// NewClient creates a task client.
func NewClient(apiClient *api.Client, opts ...Option) *Client {
	c := &Client{
		api:    apiClient,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tasks returns a copy of the current collection, in server order.
func (c *Client) Tasks() []model.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// FetchTasks replaces the collection with the server's list for userID.
// On failure the collection is left as it was and the error is returned;
// callers that only display tasks may ignore it.
func (c *Client) FetchTasks(ctx context.Context, userID int) error {
	var resp api.TaskListResponse
	err := c.api.Do(ctx, http.MethodGet, api.UserTasksPath(userID), nil, http.StatusOK, &resp)
	if err != nil {
		c.logger.Warn("fetching tasks", "user_id", userID, "error", err)
		return fmt.Errorf("fetching tasks for user %d: %w", userID, err)
	}

	owned := make([]model.Task, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		if t.UserID != userID {
			c.logger.Warn("dropping task owned by another user",
				"task_id", t.ID, "owner", t.UserID, "user_id", userID)
			continue
		}
		owned = append(owned, t)
	}

	c.mu.Lock()
	c.tasks = owned
	c.mu.Unlock()

	c.logger.Debug("fetched tasks", "user_id", userID, "count", len(owned))

	if c.snapshots != nil {
		if err := c.snapshots.ReplaceTaskSnapshot(ctx, userID, owned, c.now()); err != nil {
			c.logger.Warn("saving task snapshot", "user_id", userID, "error", err)
		}
	}

	return nil
}

// AddTask stamps CreatedAt with the current local time and creates the
// task on the server. The collection is not updated; call FetchTasks to
// observe the result.
func (c *Client) AddTask(ctx context.Context, t model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.UserID == 0 {
		return ErrNoOwner
	}

	t.CreatedAt = model.FormatCreatedAt(c.now())

	err := c.api.Do(ctx, http.MethodPost, api.TasksPath,
		api.NewCreateTaskRequest(t), http.StatusCreated, nil)
	if err != nil {
		c.logger.Warn("adding task", "user_id", t.UserID, "error", err)
		return fmt.Errorf("adding task: %w", err)
	}

	c.logger.Debug("added task", "user_id", t.UserID, "title", t.Title)
	return nil
}

// DeleteTask deletes the task with the given id on the server. The
// collection is not updated; call FetchTasks to observe the result. A
// non-200 answer is returned as an *api.StatusError in the chain.
func (c *Client) DeleteTask(ctx context.Context, id int) error {
	err := c.api.Do(ctx, http.MethodDelete, api.TaskPath(id), nil, http.StatusOK, nil)
	if err != nil {
		c.logger.Warn("deleting task", "task_id", id, "error", err)
		return fmt.Errorf("deleting task %d: %w", id, err)
	}

	c.logger.Debug("deleted task", "task_id", id)
	return nil
}

// AddAndRefresh adds t and, if that succeeds, re-fetches the owner's list.
func (c *Client) AddAndRefresh(ctx context.Context, t model.Task) error {
	if err := c.AddTask(ctx, t); err != nil {
		return err
	}
	return c.FetchTasks(ctx, t.UserID)
}

// DeleteAndRefresh deletes id and, if that succeeds, re-fetches userID's
// list.
func (c *Client) DeleteAndRefresh(ctx context.Context, id, userID int) error {
	if err := c.DeleteTask(ctx, id); err != nil {
		return err
	}
	return c.FetchTasks(ctx, userID)
}

// CachedTasks returns the last snapshot saved for userID. It returns
// store.ErrNoSnapshot when snapshots are disabled or none exists.
func (c *Client) CachedTasks(ctx context.Context, userID int) (*store.Snapshot, error) {
	if c.snapshots == nil {
		return nil, store.ErrNoSnapshot
	}
	return c.snapshots.GetTaskSnapshot(ctx, userID)
}

// Reset empties the collection, e.g. after logout.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasks = nil
}
