// Package backend opens the configured KeyValue implementation.
package backend

import (
	"context"
	"fmt"

	"github.com/iudanet/chatsync/internal/client/storage"
	"github.com/iudanet/chatsync/internal/client/storage/boltdb"
	"github.com/iudanet/chatsync/internal/client/storage/memory"
	"github.com/iudanet/chatsync/internal/client/storage/sqlite"
)

// Имена драйверов совпадают со значениями storage.driver в конфигурации
const (
	Bolt   = "bolt"
	SQLite = "sqlite"
	Memory = "memory"
)

// Backend is a KeyValue that owns an underlying resource.
type Backend interface {
	storage.KeyValue
	Close() error
}

// Open opens the backend named by driver. path is ignored for Memory.
func Open(ctx context.Context, driver, path string) (Backend, error) {
	switch driver {
	case Bolt:
		s, err := boltdb.New(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case SQLite:
		s, err := sqlite.New(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Memory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
