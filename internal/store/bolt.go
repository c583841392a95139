package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// bucketName is the single bbolt bucket holding all widget task state.
var bucketName = []byte("mova")

// BoltKV is a KV backed by a bbolt file. bbolt takes an exclusive lock
// on the file for the lifetime of the handle, which serializes the main
// application and the background task against each other: a second
// process blocks in Open until the lock frees or the timeout expires.
// That lock is the mutual exclusion for concurrent host invocations.
type BoltKV struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the shared store file at path.
// lockTimeout bounds how long Open waits for the file lock; zero waits
// indefinitely, which a time-budgeted background task should avoid.
func OpenBolt(path string, lockTimeout time.Duration) (*BoltKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open store file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create store bucket: %w", err)
	}

	return &BoltKV{db: db}, nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (s *BoltKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v == nil {
			return ErrKeyNotFound
		}
		// The slice is only valid inside the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, mapBoltErr(err)
	}
	return value, nil
}

// Set stores value under key.
func (s *BoltKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return mapBoltErr(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	}))
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *BoltKV) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return mapBoltErr(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	}))
}

// Update atomically transforms the value under key inside one bbolt
// write transaction.
func (s *BoltKV) Update(ctx context.Context, key string, fn func(current []byte, exists bool) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return mapBoltErr(s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		current := bucket.Get([]byte(key))

		var snapshot []byte
		if current != nil {
			snapshot = append([]byte(nil), current...)
		}

		next, err := fn(snapshot, current != nil)
		if err != nil {
			return err
		}
		if next == nil {
			return bucket.Delete([]byte(key))
		}
		return bucket.Put([]byte(key), next)
	}))
}

// Close releases the store file and its lock.
func (s *BoltKV) Close() error {
	return s.db.Close()
}

// mapBoltErr translates bbolt's closed-handle error into the store's
// own sentinel so callers never depend on the backend's error values.
func mapBoltErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}
