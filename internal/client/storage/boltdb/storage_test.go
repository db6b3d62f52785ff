package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		path    func(dir string) string
		wantErr bool
	}{
		{
			name: "fresh file",
			path: func(dir string) string { return filepath.Join(dir, "chatsync.db") },
		},
		{
			name:    "missing parent directory",
			path:    func(dir string) string { return filepath.Join(dir, "missing", "chatsync.db") },
			wantErr: true,
		},
		{
			name:    "path is a directory",
			path:    func(dir string) string { return dir },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(context.Background(), tt.path(t.TempDir()))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			err = store.db.View(func(tx *bbolt.Tx) error {
				assert.NotNil(t, tx.Bucket(bucketKV), "kv bucket must exist")
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestNew_LockedByAnotherClient(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chatsync.db")

	first, err := New(context.Background(), dbPath)
	require.NoError(t, err)

	second, err := New(context.Background(), dbPath)
	require.ErrorIs(t, err, bbolt.ErrTimeout)
	assert.Nil(t, second)

	// после закрытия первого клиента база снова открывается
	require.NoError(t, first.Close())
	second, err = New(context.Background(), dbPath)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestClose_Idempotent(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "chatsync.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Nil(t, store.db)
	assert.NoError(t, store.Close())
}
