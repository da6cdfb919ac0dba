// Package prompt collects credentials and new-task input with huh forms.
package prompt

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/tasksync/internal/model"
)

// ErrAborted is returned when the user cancels a form.
var ErrAborted = errors.New("aborted")

// Credentials holds login or registration input.
type Credentials struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// TaskInput holds the fields of the new-task form.
type TaskInput struct {
	Title       string
	Description string
	IsCompleted bool
}

// required returns a validator that rejects blank input with err.
func required(err error) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return err
		}
		return nil
	}
}

// LoginForm asks for email and password.
func LoginForm(c *Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&c.Email).
				Validate(required(model.ErrEmptyEmail)),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(required(model.ErrEmptyPassword)),
		).Title("Task Manager").Description("Log in to continue"),
	)
}

// RegisterForm asks for email, password, and a confirmation. Whether the
// passwords match is checked by the caller before anything is sent.
func RegisterForm(c *Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&c.Email).
				Validate(required(model.ErrEmptyEmail)),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(required(model.ErrEmptyPassword)),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&c.ConfirmPassword),
		).Title("Create account"),
	)
}

// TaskForm asks for the fields of a new task.
func TaskForm(in *TaskInput) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&in.Title).
				Validate(required(errors.New("Title cannot be empty"))),
			huh.NewText().
				Title("Description").
				Value(&in.Description),
			huh.NewConfirm().
				Title("Completed?").
				Affirmative("Yes").
				Negative("No").
				Value(&in.IsCompleted),
		).Title("New Task"),
	)
}

// ConfirmLogoutForm asks before clearing the session.
func ConfirmLogoutForm(confirmed *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Logout").
				Description("Are you sure you want to logout?").
				Affirmative("Logout").
				Negative("Cancel").
				Value(confirmed),
		),
	)
}

// Run runs form in the terminal, mapping a user abort to ErrAborted.
func Run(form *huh.Form) error {
	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}
