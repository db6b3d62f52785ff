package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// Store wraps a KeyValue with JSON encoding and degrades every failure to a logged
// cache miss, so that state keeps working in memory when persistence is broken.
// A Store without KeyValue is a valid in-memory-only store.
type Store struct {
	kv     KeyValue
	logger *slog.Logger
}

// NewStore creates a new Store. kv may be nil.
func NewStore(kv KeyValue, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// Load decodes the value stored under key into v.
// Returns false on a miss or on any failure.
func (s *Store) Load(ctx context.Context, key string, v any) bool {
	if s == nil || s.kv == nil {
		return false
	}

	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.warn(&Error{Op: "get", Key: key, Err: err})
		}
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.warn(&Error{Op: "decode", Key: key, Err: err})
		return false
	}
	return true
}

// Save encodes v and stores it under key. Returns false if the value was not persisted.
func (s *Store) Save(ctx context.Context, key string, v any) bool {
	if s == nil || s.kv == nil {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		s.warn(&Error{Op: "encode", Key: key, Err: err})
		return false
	}

	if err := s.kv.Set(ctx, key, data); err != nil {
		s.warn(&Error{Op: "set", Key: key, Err: err})
		return false
	}
	return true
}

// Delete removes key. Returns false if the removal failed.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if s == nil || s.kv == nil {
		return false
	}

	if err := s.kv.Remove(ctx, key); err != nil {
		s.warn(&Error{Op: "remove", Key: key, Err: err})
		return false
	}
	return true
}

func (s *Store) warn(err *Error) {
	// Не прерываем работу из-за ошибки хранилища: состояние продолжает жить в памяти
	s.logger.Warn("Persistence failure, continuing in memory",
		"op", err.Op,
		"key", err.Key,
		"error", err.Err)
}
