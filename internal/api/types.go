package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/tasksync/internal/model"
)

// Endpoint paths of the remote service.
const (
	LoginPath    = "/api/auth/login"
	RegisterPath = "/api/auth/register"
	TasksPath    = "/api/tasks/"
)

// UserTasksPath is the list endpoint for one user's tasks.
func UserTasksPath(userID int) string {
	return fmt.Sprintf("/api/tasks/user/%d", userID)
}

// TaskPath addresses a single task.
func TaskPath(id int) string {
	return fmt.Sprintf("/api/tasks/%d", id)
}

// CredentialsRequest is the body of POST /api/auth/login and
// POST /api/auth/register.
type CredentialsRequest struct {
	// ID is always 0. The server contract includes it but does not use it.
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewCredentialsRequest builds the request body for a user.
func NewCredentialsRequest(u model.User) CredentialsRequest {
	return CredentialsRequest{
		ID:       0,
		Email:    u.Email,
		Password: u.Password,
	}
}

// LoginResponse is the 200 response from POST /api/auth/login.
type LoginResponse struct {
	Message string     `json:"message"`
	User    model.User `json:"user"`
}

// MessageResponse is the generic {message} body, used by the register
// endpoint on failure.
type MessageResponse struct {
	Message string `json:"message"`
}

// TaskListResponse is the 200 response from GET /api/tasks/user/{id}.
type TaskListResponse struct {
	Message string       `json:"message"`
	Tasks   []model.Task `json:"tasks"`
}

// UnmarshalJSON rejects a body whose tasks field is absent or null. An
// empty list must be sent as [].
func (r *TaskListResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message string        `json:"message"`
		Tasks   *[]model.Task `json:"tasks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Tasks == nil {
		return errors.New("tasks missing or null")
	}
	r.Message = raw.Message
	r.Tasks = *raw.Tasks
	return nil
}

// CreateTaskRequest is the body of POST /api/tasks/.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	IsCompleted bool   `json:"is_completed"`
	UserID      int    `json:"userId"`
}

// NewCreateTaskRequest builds the request body for a task.
func NewCreateTaskRequest(t model.Task) CreateTaskRequest {
	return CreateTaskRequest{
		Title:       t.Title,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		IsCompleted: t.IsCompleted,
		UserID:      t.UserID,
	}
}
