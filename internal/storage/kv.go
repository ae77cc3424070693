package storage

import (
	"context"
	"errors"
)

// Common medium errors.
var (
	// ErrKeyNotFound indicates the key does not exist in the medium.
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrClosed indicates the medium has been closed.
	ErrClosed = errors.New("storage: medium closed")
)

// KV is the raw byte-oriented medium underneath the Backend.
//
// Implementations are dumb stores: no quota, no backups, no envelope.
// All of that lives in Backend so any capacity-limited medium (an
// embedded KV database, an in-memory map standing in for a browser
// key/value store) can sit underneath unchanged.
type KV interface {
	// Put stores a value under a key, overwriting any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Get retrieves a value by key. Returns ErrKeyNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys currently stored, in no particular order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases the medium.
	Close() error
}
