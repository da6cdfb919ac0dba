package model

import (
	"errors"
	"strings"
)

// Validation errors for credential input. The messages are shown to the
// user verbatim.
var (
	ErrEmptyEmail    = errors.New("Email cannot be empty")
	ErrEmptyPassword = errors.New("Password cannot be empty")
)

// ErrNoUserID is returned for a user record that should carry a
// server-assigned id but does not.
var ErrNoUserID = errors.New("user has no id")

// User is an identity record. The authoritative copy, with ID populated,
// comes from a successful login response.
type User struct {
	// ID is assigned by the server; nil before registration.
	ID *int `json:"id,omitempty"`

	// Email is always lowercase once built through NewUser.
	Email string `json:"email"`

	// Password travels as-is under the password_hash wire name. It is not
	// hashed client-side.
	Password string `json:"password_hash"`
}

// NewUser builds a User from form input, normalizing the email.
func NewUser(email, password string) User {
	return User{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
}

// Validate reports whether the user can be submitted to a network operation.
func (u User) Validate() error {
	if u.Email == "" {
		return ErrEmptyEmail
	}
	if u.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// ValidateSession reports whether u can back a logged-in session: it must
// pass Validate and carry a server-assigned id. A login response and a
// restored session record are held to the same rule.
func (u User) ValidateSession() error {
	if err := u.Validate(); err != nil {
		return err
	}
	if _, ok := u.UserID(); !ok {
		return ErrNoUserID
	}
	return nil
}

// UserID returns the server-assigned id and whether it is set.
func (u User) UserID() (int, bool) {
	if u.ID == nil {
		return 0, false
	}
	return *u.ID, true
}
