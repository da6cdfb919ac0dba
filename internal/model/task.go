package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// CreatedAtLayout is the wire format for Task.CreatedAt
// (YYYY-MM-DD HH:mm:ss, local wall-clock time).
const CreatedAtLayout = "2006-01-02 15:04:05"

// Task is a unit of work owned by a user, as stored by the remote service.
type Task struct {
	// ID is assigned by the server. Zero until the task has been created.
	ID int `json:"id"`

	// UserID is the id of the owning user.
	UserID int `json:"user_id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// IsCompleted may arrive on the wire as 0/1 or as a boolean.
	IsCompleted bool `json:"is_completed"`

	// CreatedAt is stamped by the client at creation time (CreatedAtLayout).
	CreatedAt string `json:"created_at"`
}

// FormatCreatedAt renders t in the CreatedAtLayout using local time.
func FormatCreatedAt(t time.Time) string {
	return t.Local().Format(CreatedAtLayout)
}

// taskKeys are the fields every task object on the wire must carry.
var taskKeys = []string{"id", "user_id", "title", "description", "is_completed", "created_at"}

// UnmarshalJSON decodes a task, coercing is_completed to a boolean. Every
// field in taskKeys must be present and non-null.
func (t *Task) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for _, key := range taskKeys {
		v, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("task: missing %s", key)
		}
	}

	type plain Task
	var raw struct {
		plain
		IsCompleted flexBool `json:"is_completed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.plain)
	t.IsCompleted = bool(raw.IsCompleted)
	return nil
}

// flexBool accepts true/false, 0/1 (any non-zero number is true),
// and the string forms of both.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		*b = flexBool(asBool)
		return nil
	}

	var asNum json.Number
	if err := json.Unmarshal(data, &asNum); err == nil {
		f, err := asNum.Float64()
		if err != nil {
			return fmt.Errorf("is_completed: %w", err)
		}
		*b = f != 0
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := strconv.ParseBool(asString)
		if err != nil {
			return fmt.Errorf("is_completed: invalid value %q", asString)
		}
		*b = flexBool(parsed)
		return nil
	}

	return fmt.Errorf("is_completed: unsupported value %s", data)
}
