// Package memory provides an in-memory key/value medium for Granary.
//
// It stands in for browser-style key/value storage: a flat string-keyed
// byte store with an optional hard byte capacity. The quota logic,
// backups, and cleanup all live in the storage backend above it.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/elacour/granary/internal/storage"
)

// Store is an in-memory implementation of storage.KV.
type Store struct {
	mu       sync.RWMutex
	data     map[string][]byte
	maxBytes int64
	used     int64
	closed   bool
}

// Option configures the Store.
type Option func(*Store)

// WithMaxBytes sets a hard byte capacity on the medium itself,
// mimicking a quota-limited browser store. Zero means unlimited.
func WithMaxBytes(max int64) Option {
	return func(s *Store) {
		s.maxBytes = max
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a value, overwriting any existing one.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	delta := int64(len(value)) - int64(len(s.data[key]))
	if s.maxBytes > 0 && s.used+delta > s.maxBytes {
		return storage.ErrMediumFull
	}

	clone := make([]byte, len(value))
	copy(clone, value)
	s.data[key] = clone
	s.used += delta
	return nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	value, ok := s.data[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	clone := make([]byte, len(value))
	copy(clone, value)
	return clone, nil
}

// Delete removes a key. Absent keys are ignored.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	s.used -= int64(len(s.data[key]))
	delete(s.data, key)
	return nil
}

// Keys lists all stored keys, sorted for deterministic iteration.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close marks the store closed; further operations fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Used returns the current byte usage. Test helper.
func (s *Store) Used() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Corrupt overwrites the raw bytes stored under a key without any
// accounting or framing. Only useful for fault-injection in tests.
func (s *Store) Corrupt(key string, mutate func([]byte) []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data[key]
	if !ok {
		return false
	}
	mutated := mutate(value)
	s.used += int64(len(mutated)) - int64(len(value))
	s.data[key] = mutated
	return true
}
