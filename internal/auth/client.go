// Package auth turns user credentials into an authenticated session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/session"
)

// Errors surfaced to the login and register forms. Their messages are
// shown verbatim.
var (
	ErrLoginFailed      = errors.New("Login failed. Please check your credentials.")
	ErrPasswordMismatch = errors.New("Passwords do not match")
)

// RegisterError carries the reason a registration was refused.
type RegisterError struct {
	// StatusCode is zero when the request never got a response.
	StatusCode int
	Reason     string
	Err        error
}

func (e *RegisterError) Error() string { return e.Reason }

func (e *RegisterError) Unwrap() error { return e.Err }

// Client performs login and registration against the remote service and
// owns the transitions of a Session.
type Client struct {
	api     *api.Client
	session *session.Session
	store   *session.Store
	logger  *slog.Logger
}

// NewClient wires an auth client. A nil logger discards output.
func NewClient(
	apiClient *api.Client,
	sess *session.Session,
	store *session.Store,
	logger *slog.Logger,
) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		api:     apiClient,
		session: sess,
		store:   store,
		logger:  logger,
	}
}

// Session returns the session this client updates.
func (c *Client) Session() *session.Session {
	return c.session
}

// Login authenticates u. On success the session holds the user returned
// by the server and the record is persisted. On any failure the session
// is left as it was and the error wraps ErrLoginFailed. A single failed
// attempt is final; there is no retry.
func (c *Client) Login(ctx context.Context, u model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	var resp api.LoginResponse
	err := c.api.Do(ctx, http.MethodPost, api.LoginPath,
		api.NewCredentialsRequest(u), http.StatusOK, &resp)
	if err != nil {
		c.logger.Info("login failed", "email", u.Email, "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	// Accept only a user that a later CheckExistingSession can restore.
	if err := resp.User.ValidateSession(); err != nil {
		c.logger.Warn("login response carried an incomplete user", "email", u.Email, "error", err)
		return fmt.Errorf("%w: %w: %w", ErrLoginFailed, api.ErrDecode, err)
	}

	c.session.Set(resp.User)
	if err := c.store.Save(resp.User); err != nil {
		c.logger.Warn("session not persisted", "error", err)
	}

	c.logger.Debug("logged in", "email", resp.User.Email)
	return nil
}

// Register creates an account for u. Registration does not log in. A
// refusal is reported as a *RegisterError whose Reason is the server's
// message when it sent one.
func (c *Client) Register(ctx context.Context, u model.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	err := c.api.Do(ctx, http.MethodPost, api.RegisterPath,
		api.NewCredentialsRequest(u), http.StatusCreated, nil)
	if err == nil {
		c.logger.Debug("registered", "email", u.Email)
		return nil
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		reason := statusErr.Message
		if reason == "" {
			reason = fmt.Sprintf("Registration failed with status code %d", statusErr.StatusCode)
		}
		return &RegisterError{StatusCode: statusErr.StatusCode, Reason: reason, Err: err}
	}

	return &RegisterError{Reason: fmt.Sprintf("Error: %v", err), Err: err}
}

// RegisterWithConfirmation is the registration form path: it checks the
// fields and the password confirmation before anything is sent.
func (c *Client) RegisterWithConfirmation(
	ctx context.Context,
	email, password, confirm string,
) error {
	u := model.NewUser(email, password)
	if err := ValidateRegistration(u, confirm); err != nil {
		return err
	}
	return c.Register(ctx, u)
}

// ValidateRegistration checks form input for registration.
func ValidateRegistration(u model.User, confirm string) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// CheckExistingSession restores a persisted session, if one exists. A
// missing or undecodable record leaves the session untouched.
func (c *Client) CheckExistingSession() bool {
	u, ok := c.store.Load()
	if !ok {
		return false
	}
	c.session.Set(u)
	return true
}

// Logout clears the session and deletes the persisted record.
func (c *Client) Logout() error {
	c.session.Clear()
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}
