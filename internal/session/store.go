package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/nhle/tasksync/internal/model"
)

// UserKey is the fixed key the current user is stored under.
const UserKey = "loggedInUser"

// ErrNotFound is returned by a Backend when the key has no value.
var ErrNotFound = errors.New("session record not found")

// Backend is durable byte storage addressed by key.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Store persists exactly one User record under UserKey, with overwrite
// semantics. There is no versioning: a record that no longer decodes is
// treated as absent.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// NewStore wraps backend. A nil logger discards output.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{backend: backend, logger: logger}
}

// Save overwrites the stored user. An encoding failure is logged and
// swallowed; a backend write failure is returned.
func (s *Store) Save(u model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		s.logger.Warn("not persisting session: encoding user", "error", err)
		return nil
	}

	if err := s.backend.Set(UserKey, data); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load returns the stored user. A missing, unreadable, or undecodable
// record all read as "no session", as does one that fails
// model.User.ValidateSession.
func (s *Store) Load() (model.User, bool) {
	data, err := s.backend.Get(UserKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("reading session", "error", err)
		}
		return model.User{}, false
	}

	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		s.logger.Debug("discarding undecodable session record", "error", err)
		return model.User{}, false
	}
	if err := u.ValidateSession(); err != nil {
		s.logger.Debug("discarding incomplete session record", "error", err)
		return model.User{}, false
	}

	return u, true
}

// Clear removes the stored user. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	if err := s.backend.Remove(UserKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// MemoryBackend is a process-local Backend.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryBackend) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBackend) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; !ok {
		return ErrNotFound
	}
	delete(m.items, key)
	return nil
}
