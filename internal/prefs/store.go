// Package prefs implements the SDK's durable local preference store: a small
// string-to-string map holding device identity and related state, persisted
// to a file. It is the Go analogue of the shared UserDefaults suite the
// backend contract assumes.
package prefs

import (
	"sync"
)

// Well-known preference keys.
const (
	KeyBluxID   = "bluxId"
	KeyDeviceID = "bluxDeviceId"
	KeyUserID   = "bluxUserId"
	KeyClientID = "bluxClientId"
)

// Store is a durable key-value store of SDK-local state. Implementations must
// be safe for concurrent use. Reads reflect the most recently stored value,
// including values written by another process sharing the same backing store.
type Store interface {
	// Get returns the stored value for key, and whether one exists.
	Get(key string) (string, bool)
	// Set stores a value for key.
	Set(key, value string) error
	// Delete removes any stored value for key.
	Delete(key string) error
	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore is a non-durable Store for tests and for applications that
// manage identity persistence themselves.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set implements Store.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
