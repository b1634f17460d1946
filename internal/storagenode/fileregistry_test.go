package storagenode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/store/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRegistryCreateAndGet(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)

	entry, err := reg.Create("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", entry.Path)
	assert.Equal(t, int64(0), entry.Size)

	got, ok := reg.Get("notes.txt")
	require.True(t, ok)
	assert.Equal(t, entry.AbsPath, got.AbsPath)
}

func TestFileRegistryCreateDuplicateFails(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("notes.txt")
	require.NoError(t, err)

	_, err = reg.Create("notes.txt")
	assert.ErrorIs(t, err, clustererr.NewFileExists("notes.txt"))
}

func TestFileRegistryCreateMakesParentDirs(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("a/b/c.txt")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(reg.BasePath, "a", "b", "c.txt"))
	require.NoError(t, err)
}

func TestFileRegistryDelete(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("notes.txt")
	require.NoError(t, err)

	require.NoError(t, reg.Delete("notes.txt"))
	_, ok := reg.Get("notes.txt")
	assert.False(t, ok)

	err = reg.Delete("notes.txt")
	assert.ErrorIs(t, err, clustererr.NewFileNotFound("notes.txt"))
}

func TestFileRegistryReadAndReplaceContent(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("notes.txt")
	require.NoError(t, err)

	content := []byte("One. Two! Three?")
	entry, err := reg.ReplaceContent("notes.txt", content)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), entry.Size)
	assert.Equal(t, 3, entry.SentenceCount)

	got, err := reg.ReadContent("notes.txt")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestFileRegistryReadContentPooledMatchesReadContent(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("notes.txt")
	require.NoError(t, err)

	content := []byte("One. Two! Three?")
	_, err = reg.ReplaceContent("notes.txt", content)
	require.NoError(t, err)

	pooled, release, err := reg.ReadContentPooled("notes.txt")
	require.NoError(t, err)
	defer release()
	assert.Equal(t, content, pooled)
}

func TestFileRegistryReadContentPooledMissingFile(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, _, err := reg.ReadContentPooled("missing.txt")
	assert.ErrorIs(t, err, clustererr.NewFileNotFound("missing.txt"))
}

func TestFileRegistryReplaceContentRecomputesSentenceCount(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("notes.txt")
	require.NoError(t, err)

	_, err = reg.ReplaceContent("notes.txt", []byte("One. Two."))
	require.NoError(t, err)

	entry, err := reg.ReplaceContent("notes.txt", []byte("Just one sentence."))
	require.NoError(t, err)
	assert.Equal(t, 1, entry.SentenceCount)
}

func TestFileRegistryCapacityEnforced(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 10)
	_, err := reg.Create("notes.txt")
	require.NoError(t, err)

	_, err = reg.ReplaceContent("notes.txt", []byte("this is far too long"))
	assert.ErrorIs(t, err, clustererr.NewCapacity("notes.txt"))
}

func TestFileRegistryCreateRespectsCapacity(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 5)
	_, err := reg.Create("a.txt")
	require.NoError(t, err)
	_, err = reg.ReplaceContent("a.txt", []byte("12345"))
	require.NoError(t, err)

	_, err = reg.Create("b.txt")
	assert.ErrorIs(t, err, clustererr.NewCapacity("b.txt"))
}

func TestFileRegistryScanRebuildsFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("Hello world. Bye."), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	reg := NewFileRegistry(dir, 0)
	require.NoError(t, reg.Scan())

	entry, ok := reg.Get("existing.txt")
	require.True(t, ok)
	assert.Equal(t, 2, entry.SentenceCount)
	assert.Equal(t, int64(len("Hello world. Bye.")), entry.Size)

	sub, ok := reg.Get("sub")
	require.True(t, ok)
	assert.True(t, sub.IsDirectory)

	assert.Equal(t, int64(len("Hello world. Bye.")), reg.UsedBytes())
}

func TestFileRegistryListAndCount(t *testing.T) {
	reg := NewFileRegistry(t.TempDir(), 0)
	_, err := reg.Create("a.txt")
	require.NoError(t, err)
	_, err = reg.Create("b.txt")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Count())
	assert.Len(t, reg.List(), 2)
}

func TestFileRegistryScanReusesCachedSentenceCount(t *testing.T) {
	dir := t.TempDir()
	content := []byte("Hello world. Bye.")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), content, 0o644))

	cache, err := badger.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	reg := NewFileRegistry(dir, 0).WithCache(cache)
	require.NoError(t, reg.Scan())

	entry, ok := reg.Get("existing.txt")
	require.True(t, ok)
	assert.Equal(t, 2, entry.SentenceCount)

	cached, ok, err := cache.Get("existing.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, cached.SentenceCount)

	// Corrupt the cached sentence count directly; a second scan with an
	// unchanged mtime should still trust (and reuse) the stale value,
	// proving Scan actually consults the cache rather than recounting.
	cached.SentenceCount = 99
	require.NoError(t, cache.Put(cached))

	require.NoError(t, reg.Scan())
	entry, ok = reg.Get("existing.txt")
	require.True(t, ok)
	assert.Equal(t, 99, entry.SentenceCount)
}

func TestFileRegistryDeleteRemovesCacheEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := badger.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	reg := NewFileRegistry(dir, 0).WithCache(cache)
	_, err = reg.Create("a.txt")
	require.NoError(t, err)

	_, ok, err := cache.Get("a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, reg.Delete("a.txt"))

	_, ok, err = cache.Get("a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
