// Package store provides durable key-value storage for suiteboard state.
package store

import "errors"

// ErrKeyNotFound is returned by Get when nothing is stored under a key.
var ErrKeyNotFound = errors.New("key not found")

// Store defines a process-local, single-writer key-value store. Values are
// opaque byte slices; callers own the encoding.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Put replaces the value stored under key. The write is durable when
	// Put returns.
	Put(key string, value []byte) error

	// Close releases any resources held by the store.
	Close() error
}

func validKey(key string) error {
	if key == "" {
		return errors.New("key is required")
	}
	return nil
}
