// Package storagenode implements the Storage Node: the file registry for
// a local directory tree, the sentence-level read/write/create/delete/
// copy handlers, and the data-channel and NN-control listeners.
package storagenode

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/bufpool"
	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/sentence"
	"github.com/docspp/cluster/pkg/store/badger"
)

// FileEntry is one file (or directory) under the SN's base directory
// (spec.md §3 Data Model: "Storage Node file entry").
type FileEntry struct {
	Path          string // logical path, relative to BasePath
	AbsPath       string
	Size          int64
	CreatedAt     time.Time
	ModifiedAt    time.Time
	SentenceCount int
	IsDirectory   bool
}

// FileRegistry tracks every file under BasePath, protected by its own
// mutex, held separately from the lock table (spec.md §5: "The SN holds
// its file registry and lock table under separate exclusion").
type FileRegistry struct {
	BasePath string

	mu      sync.RWMutex
	byPath  map[string]*FileEntry
	maxSize int64 // capacity in bytes, 0 = unbounded (SPEC_FULL §C.1)
	used    int64

	cache *badger.Cache // optional warm-cache, nil when disabled (SPEC_FULL §B)
}

// NewFileRegistry creates a registry rooted at basePath with the given
// byte capacity (0 = unbounded).
func NewFileRegistry(basePath string, capacity int64) *FileRegistry {
	return &FileRegistry{BasePath: basePath, byPath: make(map[string]*FileEntry), maxSize: capacity}
}

// WithCache attaches a badger-backed warm-cache of sentence counts,
// consulted by Scan to skip re-segmenting files whose mtime hasn't
// changed since the cache was written. Passing nil disables it. This
// mirrors the zero-overhead-when-absent pattern used for metrics
// elsewhere in this package.
func (r *FileRegistry) WithCache(cache *badger.Cache) *FileRegistry {
	r.cache = cache
	return r
}

// Scan walks BasePath recursively and (re)builds the registry from disk,
// the sole source of truth at startup (spec.md §6 Persistent state:
// "registries are reconstructed at startup from disk scan"). When a
// warm-cache is attached, a file whose disk mtime still matches its
// cached entry reuses the cached sentence count instead of re-reading
// and re-segmenting the file.
func (r *FileRegistry) Scan() error {
	var cached map[string]badger.Entry
	if r.cache != nil {
		var err error
		cached, err = r.cache.All()
		if err != nil {
			logger.Warn("warm-cache read failed, scanning cold", "error", err)
			cached = nil
		}
	}

	entries := make(map[string]*FileEntry)
	var used int64

	err := filepath.Walk(r.BasePath, func(abs string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if abs == r.BasePath {
			return nil
		}
		rel, err := filepath.Rel(r.BasePath, abs)
		if err != nil {
			return err
		}

		entry := &FileEntry{
			Path:        filepath.ToSlash(rel),
			AbsPath:     abs,
			Size:        info.Size(),
			CreatedAt:   info.ModTime(),
			ModifiedAt:  info.ModTime(),
			IsDirectory: info.IsDir(),
		}
		if !info.IsDir() {
			if cachedEntry, ok := cached[entry.Path]; ok && cachedEntry.Size == info.Size() && cachedEntry.ModTime.Equal(info.ModTime()) {
				entry.SentenceCount = cachedEntry.SentenceCount
			} else {
				content, readErr := os.ReadFile(abs)
				if readErr == nil {
					entry.SentenceCount = sentence.Count(content)
				}
			}
			used += info.Size()
		}
		entries[entry.Path] = entry
		return nil
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.byPath = entries
	r.used = used
	r.mu.Unlock()

	r.refreshCache(entries)
	return nil
}

// cachePut writes a single entry to the warm-cache. Callers hold r.mu.
func (r *FileRegistry) cachePut(e *FileEntry) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(badger.Entry{Path: e.Path, Size: e.Size, SentenceCount: e.SentenceCount, ModTime: e.ModifiedAt}); err != nil {
		logger.Warn("warm-cache write failed", "path", e.Path, "error", err)
	}
}

// refreshCache writes every file entry's metadata to the warm-cache, a
// no-op when none is attached.
func (r *FileRegistry) refreshCache(entries map[string]*FileEntry) {
	if r.cache == nil {
		return
	}
	for _, e := range entries {
		if e.IsDirectory {
			continue
		}
		if err := r.cache.Put(badger.Entry{Path: e.Path, Size: e.Size, SentenceCount: e.SentenceCount, ModTime: e.ModifiedAt}); err != nil {
			logger.Warn("warm-cache write failed", "path", e.Path, "error", err)
		}
	}
}

// Get returns a copy of path's entry, or ok=false if unknown.
func (r *FileRegistry) Get(path string) (*FileEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byPath[path]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// Create registers and creates an empty file on disk at path. Fails
// FileExists if already present, Capacity if the registry has no room.
func (r *FileRegistry) Create(path string) (*FileEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[path]; exists {
		return nil, clustererr.NewFileExists(path)
	}
	if r.maxSize > 0 && r.used >= r.maxSize {
		return nil, clustererr.NewCapacity(path)
	}

	abs := filepath.Join(r.BasePath, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, clustererr.NewConnectionFailed("create dir: " + err.Error())
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, clustererr.NewConnectionFailed("create file: " + err.Error())
	}
	f.Close()

	now := time.Now()
	entry := &FileEntry{Path: path, AbsPath: abs, CreatedAt: now, ModifiedAt: now}
	r.byPath[path] = entry
	r.cachePut(entry)

	cp := *entry
	return &cp, nil
}

// Delete removes path from disk and the registry.
func (r *FileRegistry) Delete(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.byPath[path]
	if !exists {
		return clustererr.NewFileNotFound(path)
	}
	if err := os.Remove(entry.AbsPath); err != nil && !os.IsNotExist(err) {
		return clustererr.NewConnectionFailed("delete file: " + err.Error())
	}
	r.used -= entry.Size
	delete(r.byPath, path)

	if r.cache != nil {
		if err := r.cache.Delete(path); err != nil {
			logger.Warn("warm-cache delete failed", "path", path, "error", err)
		}
	}
	return nil
}

// ReadContent reads path's full on-disk content, with no lock taken
// (spec.md §4.2: "whole-file reads are unsnapshotted").
func (r *FileRegistry) ReadContent(path string) ([]byte, error) {
	r.mu.RLock()
	entry, exists := r.byPath[path]
	r.mu.RUnlock()
	if !exists {
		return nil, clustererr.NewFileNotFound(path)
	}

	content, err := os.ReadFile(entry.AbsPath)
	if err != nil {
		return nil, clustererr.NewConnectionFailed("read file: " + err.Error())
	}
	return content, nil
}

// ReadContentPooled behaves like ReadContent but fills a buffer drawn
// from pkg/bufpool instead of allocating a fresh one, for the
// data-channel whole-file read path. The caller must invoke the
// returned release func (via bufpool.Put) once the bytes have been
// fully written to the wire, never before.
func (r *FileRegistry) ReadContentPooled(path string) (content []byte, release func(), err error) {
	r.mu.RLock()
	entry, exists := r.byPath[path]
	r.mu.RUnlock()
	if !exists {
		return nil, nil, clustererr.NewFileNotFound(path)
	}

	f, err := os.Open(entry.AbsPath)
	if err != nil {
		return nil, nil, clustererr.NewConnectionFailed("open file: " + err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, clustererr.NewConnectionFailed("stat file: " + err.Error())
	}

	buf := bufpool.Get(int(info.Size()))
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		bufpool.Put(buf)
		return nil, nil, clustererr.NewConnectionFailed("read file: " + err.Error())
	}

	data := buf[:n]
	return data, func() { bufpool.Put(buf) }, nil
}

// ReplaceContent truncate-rewrites path with content and recomputes the
// cached size/sentence-count fields (spec.md §4.2 "Write execution" /
// "Segmentation cache invalidation": "the cached value is never trusted
// across mutation").
func (r *FileRegistry) ReplaceContent(path string, content []byte) (*FileEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.byPath[path]
	if !exists {
		return nil, clustererr.NewFileNotFound(path)
	}

	if r.maxSize > 0 && r.used-entry.Size+int64(len(content)) > r.maxSize {
		return nil, clustererr.NewCapacity(path)
	}

	if err := os.WriteFile(entry.AbsPath, content, 0o644); err != nil {
		return nil, clustererr.NewConnectionFailed("write file: " + err.Error())
	}

	r.used += int64(len(content)) - entry.Size
	entry.Size = int64(len(content))
	entry.SentenceCount = sentence.Count(content)
	entry.ModifiedAt = time.Now()
	r.cachePut(entry)

	cp := *entry
	return &cp, nil
}

// List returns a snapshot of every entry.
func (r *FileRegistry) List() []*FileEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*FileEntry, 0, len(r.byPath))
	for _, e := range r.byPath {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Count returns the number of tracked entries (files and directories).
func (r *FileRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath)
}

// UsedBytes returns the total size of all tracked files.
func (r *FileRegistry) UsedBytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.used
}
