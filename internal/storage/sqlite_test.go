package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCacheStore_PutThenGet_RoundTrips(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteCacheStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "main.wst", "hash1", []byte(`{"ok":true}`)))

	blob, ok, err := store.Get(ctx, "main.wst", "hash1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"ok":true}`, string(blob))
}

func TestSQLiteCacheStore_Get_MissOnHashMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteCacheStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "main.wst", "hash1", []byte("old")))

	_, ok, err := store.Get(ctx, "main.wst", "hash2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteCacheStore_Get_MissOnUnknownKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteCacheStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(context.Background(), "nope.wst", "any")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteCacheStore_Put_OverwritesOnConflict(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteCacheStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "main.wst", "hash1", []byte("old")))
	require.NoError(t, store.Put(ctx, "main.wst", "hash2", []byte("new")))

	blob, ok, err := store.Get(ctx, "main.wst", "hash2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(blob))

	_, ok, err = store.Get(ctx, "main.wst", "hash1")
	require.NoError(t, err)
	assert.False(t, ok, "old content hash should no longer match after overwrite")
}
