package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeAPI is an in-memory stand-in for the remote task service. It
// follows the service's wire contract, including sending is_completed
// as 0/1.
type FakeAPI struct {
	Server *httptest.Server

	mu         sync.Mutex
	users      map[string]fakeUser
	tasks      []fakeTask
	nextUserID int
	nextTaskID int
	calls      map[string]int

	// failNext, when non-zero, is the status the next request answers with.
	failNext int
}

type fakeUser struct {
	ID       int
	Email    string
	Password string
}

type fakeTask struct {
	ID          int    `json:"id"`
	UserID      int    `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	IsCompleted int    `json:"is_completed"`
	CreatedAt   string `json:"created_at"`
}

// NewFakeAPI starts a fake service and closes it when the test completes.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		users:      make(map[string]fakeUser),
		nextUserID: 1,
		nextTaskID: 1,
		calls:      make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)

	return f
}

// URL returns the base URL of the fake service.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

// AddUser registers a user directly and returns its id.
func (f *FakeAPI) AddUser(email, password string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password)
}

// TaskCount returns how many tasks the service holds for userID.
func (f *FakeAPI) TaskCount(userID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.tasks {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// Calls returns how many requests matched "METHOD /path-prefix".
func (f *FakeAPI) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// TotalCalls returns the number of requests served.
func (f *FakeAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// FailNext makes the next request fail with status.
func (f *FakeAPI) FailNext(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = status
}

func (f *FakeAPI) addUserLocked(email, password string) int {
	id := f.nextUserID
	f.nextUserID++
	f.users[email] = fakeUser{ID: id, Email: email, Password: password}
	return id
}

func (f *FakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/api/auth/login":
		f.calls["POST /api/auth/login"]++
	case path == "/api/auth/register":
		f.calls["POST /api/auth/register"]++
	case strings.HasPrefix(path, "/api/tasks/user/"):
		f.calls["GET /api/tasks/user"]++
	case path == "/api/tasks/":
		f.calls["POST /api/tasks/"]++
	case strings.HasPrefix(path, "/api/tasks/"):
		f.calls["DELETE /api/tasks"]++
	}

	if f.failNext != 0 {
		status := f.failNext
		f.failNext = 0
		writeJSON(w, status, map[string]string{"message": "forced failure"})
		return
	}

	switch {
	case r.Method == http.MethodPost && path == "/api/auth/login":
		f.login(w, r)
	case r.Method == http.MethodPost && path == "/api/auth/register":
		f.register(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/tasks/user/"):
		f.listTasks(w, strings.TrimPrefix(path, "/api/tasks/user/"))
	case r.Method == http.MethodPost && path == "/api/tasks/":
		f.createTask(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/api/tasks/"):
		f.deleteTask(w, strings.TrimPrefix(path, "/api/tasks/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "route not found"})
	}
}

type credentials struct {
	ID       *int   `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, false
	}
	// The contract requires the placeholder id field.
	if c.ID == nil || c.Email == "" || c.Password == "" {
		return c, false
	}
	return c, true
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	u, exists := f.users[c.Email]
	if !exists || u.Password != c.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user": map[string]interface{}{
			"id":            u.ID,
			"email":         u.Email,
			"password_hash": u.Password,
		},
	})
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if _, exists := f.users[c.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "User already exists"})
		return
	}
	id := f.addUserLocked(c.Email, c.Password)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered",
		"userId":  id,
	})
}

func (f *FakeAPI) listTasks(w http.ResponseWriter, rawID string) {
	userID, err := strconv.Atoi(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid user id"})
		return
	}
	out := []fakeTask{}
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Tasks retrieved",
		"tasks":   out,
	})
}

func (f *FakeAPI) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CreatedAt   string `json:"created_at"`
		IsCompleted bool   `json:"is_completed"`
		UserID      int    `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" || body.UserID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid task"})
		return
	}

	completed := 0
	if body.IsCompleted {
		completed = 1
	}
	t := fakeTask{
		ID:          f.nextTaskID,
		UserID:      body.UserID,
		Title:       body.Title,
		Description: body.Description,
		IsCompleted: completed,
		CreatedAt:   body.CreatedAt,
	}
	f.nextTaskID++
	f.tasks = append(f.tasks, t)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Task created",
		"taskId":  t.ID,
	})
}

func (f *FakeAPI) deleteTask(w http.ResponseWriter, rawID string) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid task id"})
		return
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{
		"message": fmt.Sprintf("Task %d not found", id),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
