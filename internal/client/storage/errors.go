package storage

import (
	"errors"
	"fmt"
)

// Common client storage errors
var (
	// ErrKeyNotFound indicates that nothing is stored under the key
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)

// Error is a persistence failure. It never escapes Store: callers only see it in logs.
type Error struct {
	Err error
	Op  string // "get", "set", "remove", "encode", "decode"
	Key string
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
