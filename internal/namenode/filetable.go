package namenode

import (
	"sync"
	"time"

	"github.com/docspp/cluster/pkg/clustererr"
)

// ACLEntry is one non-owner grant on a file (spec.md §3 Data Model).
type ACLEntry struct {
	Username string
	CanRead  bool
	CanWrite bool
}

// FileMeta is the Name Node's view of one file, mirrored from the owning
// Storage Node on mutation.
type FileMeta struct {
	Path          string
	Owner         string
	SNID          int
	CreatedAt     time.Time
	ModifiedAt    time.Time
	AccessedAt    time.Time
	Size          int64
	WordCount     int
	SentenceCount int
	IsDirectory   bool

	acl map[string]ACLEntry // keyed by username
}

// Clone returns a deep copy safe to hand outside the file table's lock.
func (m *FileMeta) Clone() *FileMeta {
	cp := *m
	cp.acl = make(map[string]ACLEntry, len(m.acl))
	for k, v := range m.acl {
		cp.acl[k] = v
	}
	return &cp
}

// ACL returns a snapshot of the non-owner access-control entries.
func (m *FileMeta) ACL() []ACLEntry {
	out := make([]ACLEntry, 0, len(m.acl))
	for _, e := range m.acl {
		out = append(out, e)
	}
	return out
}

// CanRead reports whether username may read this file: the owner always
// can; otherwise an ACL entry with CanRead must exist.
func (m *FileMeta) CanRead(username string) bool {
	if username == m.Owner {
		return true
	}
	e, ok := m.acl[username]
	return ok && e.CanRead
}

// CanWrite reports whether username may write this file.
func (m *FileMeta) CanWrite(username string) bool {
	if username == m.Owner {
		return true
	}
	e, ok := m.acl[username]
	return ok && e.CanWrite
}

// FileTable is the Name Node's logical-path → metadata map plus the
// per-file ACL, protected by a single RWMutex (spec.md §5: "file
// registry/ACL" is one of the three partitioned mutable areas).
type FileTable struct {
	mu      sync.RWMutex
	byPath  map[string]*FileMeta
	maxSize int
}

// NewFileTable creates an empty table. maxSize of 0 means unbounded.
func NewFileTable(maxSize int) *FileTable {
	return &FileTable{byPath: make(map[string]*FileMeta), maxSize: maxSize}
}

// Insert adds a brand-new file entry owned by owner on snID. Fails with
// FileExists if the path is already present.
func (t *FileTable) Insert(path, owner string, snID int) (*FileMeta, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byPath[path]; exists {
		return nil, clustererr.NewFileExists(path)
	}
	if t.maxSize > 0 && len(t.byPath) >= t.maxSize {
		return nil, clustererr.NewCapacity("file table full")
	}

	now := time.Now()
	meta := &FileMeta{
		Path:       path,
		Owner:      owner,
		SNID:       snID,
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
		acl:        make(map[string]ACLEntry),
	}
	t.byPath[path] = meta
	return meta.Clone(), nil
}

// IngestFromSN registers path as owned by snID during SN registration
// (spec.md §4.1 register_sn). For a path already bound to snID
// (re-registration by the same SN) it refreshes the mirrored size,
// sentence count and directory flag; bound to a different SN it returns
// CONFLICT.
func (t *FileTable) IngestFromSN(path string, snID int, isDirectory bool, size int64, sentenceCount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, exists := t.byPath[path]; exists {
		if existing.SNID != snID {
			return clustererr.NewConflict(path)
		}
		existing.Size = size
		existing.SentenceCount = sentenceCount
		existing.IsDirectory = isDirectory
		return nil
	}

	now := time.Now()
	t.byPath[path] = &FileMeta{
		Path:          path,
		Owner:         "",
		SNID:          snID,
		CreatedAt:     now,
		ModifiedAt:    now,
		AccessedAt:    now,
		Size:          size,
		SentenceCount: sentenceCount,
		IsDirectory:   isDirectory,
		acl:           make(map[string]ACLEntry),
	}
	return nil
}

// Get returns an owned copy of path's metadata, or ok=false if absent.
// The copy is taken under the read lock so no pointer into the map ever
// escapes the critical section (spec.md §9: use-after-unlock hazard).
func (t *FileTable) Get(path string) (*FileMeta, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	meta, ok := t.byPath[path]
	if !ok {
		return nil, false
	}
	return meta.Clone(), true
}

// Delete removes path if owner matches the file's owner. Returns
// PermissionDenied if username is not the owner, FileNotFound if absent.
func (t *FileTable) Delete(path, username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	meta, ok := t.byPath[path]
	if !ok {
		return clustererr.NewFileNotFound(path)
	}
	if meta.Owner != username {
		return clustererr.NewPermissionDenied(path)
	}
	delete(t.byPath, path)
	return nil
}

// Rollback removes path unconditionally, for use after a create's SN
// directive fails (spec.md §4.1: "On SN failure during creation, roll
// back the metadata insert").
func (t *FileTable) Rollback(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byPath, path)
}

// AddAccess grants or updates user's ACL entry on path. Owner-only.
func (t *FileTable) AddAccess(path, requester, user string, canRead, canWrite bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	meta, ok := t.byPath[path]
	if !ok {
		return clustererr.NewFileNotFound(path)
	}
	if meta.Owner != requester {
		return clustererr.NewPermissionDenied(path)
	}
	meta.acl[user] = ACLEntry{Username: user, CanRead: canRead, CanWrite: canWrite}
	return nil
}

// RemoveAccess revokes user's ACL entry on path. Owner-only. Removing an
// absent entry is a no-op success (ACL monotonicity, spec.md §8).
func (t *FileTable) RemoveAccess(path, requester, user string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	meta, ok := t.byPath[path]
	if !ok {
		return clustererr.NewFileNotFound(path)
	}
	if meta.Owner != requester {
		return clustererr.NewPermissionDenied(path)
	}
	delete(meta.acl, user)
	return nil
}

// Touch updates the mirrored size/sentence-count fields after a
// successful SN-side mutation (spec.md §2 step 6: "on modification, SN
// updates its local metadata; the NN is informed asynchronously").
func (t *FileTable) Touch(path string, size int64, sentenceCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if meta, ok := t.byPath[path]; ok {
		meta.Size = size
		meta.SentenceCount = sentenceCount
		meta.ModifiedAt = time.Now()
	}
}

// List returns a snapshot of every file's metadata.
func (t *FileTable) List() []*FileMeta {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*FileMeta, 0, len(t.byPath))
	for _, meta := range t.byPath {
		out = append(out, meta.Clone())
	}
	return out
}

// Count returns the number of files tracked.
func (t *FileTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byPath)
}

// CountForSN returns how many files are currently bound to snID.
func (t *FileTable) CountForSN(snID int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, meta := range t.byPath {
		if meta.SNID == snID {
			n++
		}
	}
	return n
}
