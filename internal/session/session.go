// Package session holds the current-user state of a process and its
// durable persistence.
package session

import (
	"errors"
	"sync"

	"github.com/nhle/tasksync/internal/model"
)

// ErrNotLoggedIn is returned when an operation needs a current user and
// the session is empty.
var ErrNotLoggedIn = errors.New("not logged in")

// Session is the record of the currently authenticated user. It starts
// empty, is populated by a login or a restore, and is cleared by logout.
// Construct one per process and hand it to the clients that need it.
type Session struct {
	mu       sync.RWMutex
	loggedIn bool
	user     *model.User
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// Set marks the session as logged in as u.
func (s *Session) Set(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = &u
	s.loggedIn = true
}

// Clear resets the session to empty.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.loggedIn = false
}

// LoggedIn reports whether a user is set.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// CurrentUser returns a copy of the current user.
func (s *Session) CurrentUser() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// UserID returns the id of the current user, or ErrNotLoggedIn when the
// session is empty or the user has no server-assigned id.
func (s *Session) UserID() (int, error) {
	u, ok := s.CurrentUser()
	if !ok {
		return 0, ErrNotLoggedIn
	}
	id, ok := u.UserID()
	if !ok {
		return 0, ErrNotLoggedIn
	}
	return id, nil
}
