package store

import (
	"context"
	"errors"
)

// Common errors returned by the storage layer
var (
	// ErrKeyNotFound is returned by Get when the key has never been set
	// or has been removed. Absence is distinct from an empty value.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStoreClosed is returned when an operation is attempted on a
	// store that has already been closed.
	ErrStoreClosed = errors.New("store is closed")
)

// KV is the durable cross-process key/value store shared by the main
// application and the background widget task. Both execution contexts
// open the same underlying file; neither may assume in-memory caching.
//
// Implementations must make each operation independently atomic. No
// cross-operation transaction is offered: callers that read and then
// write (the re-drive routine) accept that a crash in between leaves an
// entry stale for one extra cycle.
// Version: 1.0
type KV interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Update atomically transforms the value under key. fn receives the
	// current value (nil, exists=false when absent) and returns the new
	// value; returning nil deletes the key. The whole read-modify-write
	// runs inside a single storage transaction.
	Update(ctx context.Context, key string, fn func(current []byte, exists bool) ([]byte, error)) error

	// Close releases the underlying storage handle and its file lock.
	Close() error
}
