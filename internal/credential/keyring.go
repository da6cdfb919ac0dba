// Package credential persists the session record in the system keyring.
package credential

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"

	"github.com/nhle/tasksync/internal/session"
)

const serviceName = "tasksync"

// KeyringBackend implements session.Backend on top of a keyring.
type KeyringBackend struct {
	ring keyring.Keyring
}

// Open returns a backend on the first available OS keyring. fileDir is
// used by the encrypted-file fallback when no keychain or secret service
// is present.
func Open(fileDir string) (*KeyringBackend, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("tasksync-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringBackend(ring), nil
}

// NewKeyringBackend wraps an already opened keyring.
func NewKeyringBackend(ring keyring.Keyring) *KeyringBackend {
	return &KeyringBackend{ring: ring}
}

// Get retrieves the value stored under key.
func (b *KeyringBackend) Get(key string) ([]byte, error) {
	item, err := b.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("getting credential %q: %w", key, err)
	}

	return item.Data, nil
}

// Set stores value under key, replacing any previous value.
func (b *KeyringBackend) Set(key string, value []byte) error {
	err := b.ring.Set(keyring.Item{
		Key:         key,
		Data:        value,
		Label:       "tasksync session",
		Description: "current task service user",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Remove deletes the value stored under key. The file backend reports a
// missing key as fs.ErrNotExist rather than keyring.ErrKeyNotFound.
func (b *KeyringBackend) Remove(key string) error {
	err := b.ring.Remove(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
			return session.ErrNotFound
		}
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
