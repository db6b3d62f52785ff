// Package memory provides a non-durable KeyValue backed by an ekv memstore.
// Used when no database path is configured and in tests.
package memory

import (
	"bytes"
	"context"
	"fmt"

	"gitlab.com/elixxir/ekv"

	"github.com/iudanet/chatsync/internal/client/storage"
)

// Storage is an in-memory KeyValue.
type Storage struct {
	kv ekv.KeyValue
}

// New creates an empty in-memory storage.
func New() *Storage {
	return &Storage{kv: ekv.MakeMemstore()}
}

// value хранит сырые байты в ekv. memstore держит срез как есть,
// поэтому копируем в обе стороны.
type value []byte

// Marshal implements ekv.Marshaler
func (v value) Marshal() []byte {
	return bytes.Clone(v)
}

// Unmarshal implements ekv.Unmarshaler
func (v *value) Unmarshal(data []byte) error {
	*v = bytes.Clone(data)
	return nil
}

// Get returns the value stored under key
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	var data value
	if err := s.kv.Get(key, &data); err != nil {
		if !ekv.Exists(err) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return data, nil
}

// Set stores value under key
func (s *Storage) Set(ctx context.Context, key string, data []byte) error {
	if err := s.kv.Set(key, value(data)); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.kv.Delete(key); err != nil && ekv.Exists(err) {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

// Close is a no-op, present so every backend can be closed the same way.
func (s *Storage) Close() error {
	return nil
}
