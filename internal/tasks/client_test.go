package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
	"github.com/nhle/tasksync/internal/tasks"
	"github.com/nhle/tasksync/tests/testutil"
)

var fixedNow = time.Date(2025, time.April, 11, 14, 30, 5, 0, time.Local)

func newClient(t *testing.T, opts ...tasks.Option) (*tasks.Client, *testutil.FakeAPI) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	opts = append([]tasks.Option{tasks.WithClock(func() time.Time { return fixedNow })}, opts...)
	return tasks.NewClient(api.NewClient(fake.URL()), opts...), fake
}

func TestAddThenFetchRoundTrip(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	task := model.Task{ID: 0, UserID: userID, Title: "Write report", Description: "Q2 numbers", IsCompleted: true}
	if err := c.AddTask(ctx, task); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if got := c.Tasks(); len(got) != 0 {
		t.Fatalf("AddTask must not touch the collection, got %d tasks", len(got))
	}

	if err := c.FetchTasks(ctx, userID); err != nil {
		t.Fatalf("FetchTasks: %v", err)
	}
	got := c.Tasks()
	if len(got) != 1 {
		t.Fatalf("got %d tasks, want 1", len(got))
	}
	if got[0].ID == 0 {
		t.Error("fetched task should carry a server-assigned id")
	}
	if got[0].Title != task.Title || got[0].Description != task.Description || !got[0].IsCompleted {
		t.Errorf("fetched task = %+v", got[0])
	}
	if got[0].CreatedAt != "2025-04-11 14:30:05" {
		t.Errorf("CreatedAt = %q", got[0].CreatedAt)
	}
	if got[0].UserID != userID {
		t.Errorf("UserID = %d, want %d", got[0].UserID, userID)
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	for _, title := range []string{"c", "a", "b"} {
		if err := c.AddTask(ctx, model.Task{UserID: userID, Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.FetchTasks(ctx, userID); err != nil {
		t.Fatal(err)
	}
	first := c.Tasks()
	if err := c.FetchTasks(ctx, userID); err != nil {
		t.Fatal(err)
	}
	second := c.Tasks()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("fetches differ:\n%+v\n%+v", first, second)
	}
	// Server order is preserved, not re-sorted.
	if first[0].Title != "c" || first[1].Title != "a" || first[2].Title != "b" {
		t.Errorf("order = %q, %q, %q", first[0].Title, first[1].Title, first[2].Title)
	}
}

func TestFetchReplacesCollection(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	if err := c.AddAndRefresh(ctx, model.Task{UserID: userID, Title: "one"}); err != nil {
		t.Fatal(err)
	}
	before := c.Tasks()
	if len(before) != 1 {
		t.Fatalf("got %d tasks, want 1", len(before))
	}

	if err := c.DeleteAndRefresh(ctx, before[0].ID, userID); err != nil {
		t.Fatalf("DeleteAndRefresh: %v", err)
	}
	if got := c.Tasks(); len(got) != 0 {
		t.Errorf("collection should be empty after delete and refresh, got %+v", got)
	}
}

func TestDeleteMissingTask(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	if err := c.AddAndRefresh(ctx, model.Task{UserID: userID, Title: "keep"}); err != nil {
		t.Fatal(err)
	}
	before := c.Tasks()

	err := c.DeleteTask(ctx, 9999)
	if err == nil {
		t.Fatal("expected failure deleting an unknown task")
	}
	if !api.IsStatus(err, http.StatusNotFound) {
		t.Errorf("error should carry the server's 404: %v", err)
	}
	if !reflect.DeepEqual(before, c.Tasks()) {
		t.Error("a failed delete must not alter the collection")
	}
	if fake.TaskCount(userID) != 1 {
		t.Error("server state changed")
	}
}

func TestDeleteDoesNotTouchCollection(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	if err := c.AddAndRefresh(ctx, model.Task{UserID: userID, Title: "gone soon"}); err != nil {
		t.Fatal(err)
	}
	before := c.Tasks()

	if err := c.DeleteTask(ctx, before[0].ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if !reflect.DeepEqual(before, c.Tasks()) {
		t.Error("DeleteTask must leave the collection for the next fetch to replace")
	}
	if fake.TaskCount(userID) != 0 {
		t.Error("server should no longer hold the task")
	}
}

func TestFetchFailureKeepsCollection(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	if err := c.AddAndRefresh(ctx, model.Task{UserID: userID, Title: "stable"}); err != nil {
		t.Fatal(err)
	}
	before := c.Tasks()

	fake.FailNext(http.StatusInternalServerError)
	if err := c.FetchTasks(ctx, userID); !api.IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("FetchTasks error = %v", err)
	}
	if !reflect.DeepEqual(before, c.Tasks()) {
		t.Error("a failed fetch must not alter the collection")
	}
}

func TestFetchDecodeFailureKeepsCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","tasks":[{"id":1,"user_id":1,"is_completed":"sometimes"}]}`)
	}))
	defer srv.Close()

	c := tasks.NewClient(api.NewClient(srv.URL))
	if err := c.FetchTasks(context.Background(), 1); !errors.Is(err, api.ErrDecode) {
		t.Fatalf("FetchTasks error = %v, want ErrDecode", err)
	}
	if len(c.Tasks()) != 0 {
		t.Error("collection should stay empty")
	}
}

func TestFetchSchemaMismatchKeepsCollection(t *testing.T) {
	tests := map[string]string{
		"tasks missing":      `{"message":"ok"}`,
		"tasks null":         `{"message":"ok","tasks":null}`,
		"task missing title": `{"message":"ok","tasks":[{"id":2,"user_id":7,"description":"","is_completed":0,"created_at":""}]}`,
		"bare task":          `{"message":"ok","tasks":[{"user_id":7}]}`,
	}

	good := `{"message":"ok","tasks":[` +
		`{"id":1,"user_id":7,"title":"kept","description":"","is_completed":1,"created_at":""}]}`

	for name, bad := range tests {
		t.Run(name, func(t *testing.T) {
			var body atomic.Value
			body.Store(good)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body.Load().(string))
			}))
			defer srv.Close()

			c := tasks.NewClient(api.NewClient(srv.URL))
			ctx := context.Background()
			if err := c.FetchTasks(ctx, 7); err != nil {
				t.Fatal(err)
			}
			before := c.Tasks()

			body.Store(bad)
			if err := c.FetchTasks(ctx, 7); !errors.Is(err, api.ErrDecode) {
				t.Fatalf("FetchTasks error = %v, want ErrDecode", err)
			}
			if !reflect.DeepEqual(before, c.Tasks()) {
				t.Errorf("collection changed to %+v", c.Tasks())
			}
		})
	}
}

func TestFetchEmptyListReplacesCollection(t *testing.T) {
	var body atomic.Value
	body.Store(`{"message":"ok","tasks":[` +
		`{"id":1,"user_id":7,"title":"gone","description":"","is_completed":0,"created_at":""}]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body.Load().(string))
	}))
	defer srv.Close()

	c := tasks.NewClient(api.NewClient(srv.URL))
	ctx := context.Background()
	if err := c.FetchTasks(ctx, 7); err != nil {
		t.Fatal(err)
	}

	body.Store(`{"message":"ok","tasks":[]}`)
	if err := c.FetchTasks(ctx, 7); err != nil {
		t.Fatalf("FetchTasks: %v", err)
	}
	if got := c.Tasks(); len(got) != 0 {
		t.Errorf("collection = %+v, want empty", got)
	}
}

func TestFetchDropsForeignTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"ok","tasks":[`+
			`{"id":1,"user_id":5,"title":"mine","description":"","is_completed":0,"created_at":""},`+
			`{"id":2,"user_id":6,"title":"theirs","description":"","is_completed":1,"created_at":""}]}`)
	}))
	defer srv.Close()

	c := tasks.NewClient(api.NewClient(srv.URL))
	if err := c.FetchTasks(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	got := c.Tasks()
	if len(got) != 1 || got[0].Title != "mine" {
		t.Errorf("collection = %+v", got)
	}
}

func TestAddTaskWireBody(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/tasks/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := tasks.NewClient(api.NewClient(srv.URL), tasks.WithClock(func() time.Time { return fixedNow }))
	task := model.Task{UserID: 4, Title: "t", Description: "d", CreatedAt: "ignored"}
	if err := c.AddTask(context.Background(), task); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	want := map[string]interface{}{
		"title":        "t",
		"description":  "d",
		"created_at":   "2025-04-11 14:30:05",
		"is_completed": false,
		"userId":       float64(4),
	}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("body = %v, want %v", body, want)
	}
}

func TestAddTaskFailure(t *testing.T) {
	c, fake := newClient(t)
	userID := fake.AddUser("a@b.com", "x")

	fake.FailNext(http.StatusBadRequest)
	err := c.AddTask(context.Background(), model.Task{UserID: userID, Title: "t"})
	if !api.IsStatus(err, http.StatusBadRequest) {
		t.Fatalf("AddTask error = %v", err)
	}
	if fake.TaskCount(userID) != 0 {
		t.Error("server should hold no tasks")
	}
}

func TestAddTaskValidation(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()

	if err := c.AddTask(ctx, model.Task{UserID: 1, Title: "  "}); !errors.Is(err, tasks.ErrEmptyTitle) {
		t.Errorf("empty title: %v", err)
	}
	if err := c.AddTask(ctx, model.Task{Title: "t"}); !errors.Is(err, tasks.ErrNoOwner) {
		t.Errorf("no owner: %v", err)
	}
	if n := fake.TotalCalls(); n != 0 {
		t.Errorf("server saw %d calls, want 0", n)
	}
}

func TestFetchMirrorsSnapshot(t *testing.T) {
	db := testutil.NewTestStore(t)
	c, fake := newClient(t, tasks.WithSnapshots(db))
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	if _, err := c.CachedTasks(ctx, userID); !errors.Is(err, store.ErrNoSnapshot) {
		t.Fatalf("CachedTasks before fetch: %v", err)
	}

	if err := c.AddAndRefresh(ctx, model.Task{UserID: userID, Title: "cached", IsCompleted: true}); err != nil {
		t.Fatal(err)
	}

	snap, err := c.CachedTasks(ctx, userID)
	if err != nil {
		t.Fatalf("CachedTasks: %v", err)
	}
	if !reflect.DeepEqual(snap.Tasks, c.Tasks()) {
		t.Errorf("snapshot %+v differs from collection %+v", snap.Tasks, c.Tasks())
	}

	// A failed fetch leaves the snapshot alone.
	fake.FailNext(http.StatusServiceUnavailable)
	_ = c.FetchTasks(ctx, userID)
	again, err := c.CachedTasks(ctx, userID)
	if err != nil || len(again.Tasks) != 1 {
		t.Errorf("snapshot after failed fetch = %+v, %v", again, err)
	}
}

func TestCachedTasksWithoutSnapshots(t *testing.T) {
	c, _ := newClient(t)
	if _, err := c.CachedTasks(context.Background(), 1); !errors.Is(err, store.ErrNoSnapshot) {
		t.Errorf("CachedTasks = %v", err)
	}
}

func TestReset(t *testing.T) {
	c, fake := newClient(t)
	ctx := context.Background()
	userID := fake.AddUser("a@b.com", "x")

	if err := c.AddAndRefresh(ctx, model.Task{UserID: userID, Title: "t"}); err != nil {
		t.Fatal(err)
	}
	c.Reset()
	if len(c.Tasks()) != 0 {
		t.Error("Reset should empty the collection")
	}
}
