package badger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestCache_PutGet(t *testing.T) {
	cache := openTestCache(t)

	entry := Entry{Path: "notes.txt", Size: 128, SentenceCount: 4, ModTime: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, cache.Put(entry))

	got, ok, err := cache.Get("notes.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entry.Path, got.Path)
	assert.Equal(t, entry.Size, got.Size)
	assert.Equal(t, entry.SentenceCount, got.SentenceCount)
	assert.True(t, entry.ModTime.Equal(got.ModTime))
}

func TestCache_GetMissing(t *testing.T) {
	cache := openTestCache(t)

	_, ok, err := cache.Get("missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Put(Entry{Path: "a.txt"}))
	require.NoError(t, cache.Delete("a.txt"))

	_, ok, err := cache.Get("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_DeleteMissingIsNoop(t *testing.T) {
	cache := openTestCache(t)
	assert.NoError(t, cache.Delete("never-existed.txt"))
}

func TestCache_All(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.Put(Entry{Path: "a.txt", Size: 1}))
	require.NoError(t, cache.Put(Entry{Path: "b.txt", Size: 2}))

	all, err := cache.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(1), all["a.txt"].Size)
	assert.Equal(t, int64(2), all["b.txt"].Size)
}
