package storage

import "context"

//go:generate moq -out keyvalue_mock.go . KeyValue

// KeyValue defines the minimal persistence contract of the sync core.
// Values are opaque bytes; the core stores JSON documents under a handful of keys.
type KeyValue interface {
	// Get returns the value stored under key
	// Returns ErrKeyNotFound if nothing is stored
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error
	Remove(ctx context.Context, key string) error
}
