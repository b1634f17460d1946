// Package locktable implements the per-Storage-Node sentence lock table: a
// map from (logical path, sentence index) to a reader-writer lock state,
// with non-blocking try-acquire semantics and holder-tracked release on
// disconnect.
package locktable

import "sync"

// Key identifies one lock slot.
type Key struct {
	Path        string
	SentenceIdx int
}

// slot holds the lock state for a single Key. Exactly one of
// exclusiveHolder or shared is populated at any time; both are empty when
// the key is unlocked, at which point the slot is removed from the table
// entirely.
type slot struct {
	exclusiveHolder string
	shared          map[string]int // holder -> reference count
}

// Table is a reader-writer lock table keyed by (path, sentence index).
// All operations are non-blocking: contention returns false immediately,
// there is no wait queue.
type Table struct {
	mu       sync.Mutex
	slots    map[Key]*slot
	byHolder map[string]map[Key]struct{}
}

// New creates an empty lock table.
func New() *Table {
	return &Table{
		slots:    make(map[Key]*slot),
		byHolder: make(map[string]map[Key]struct{}),
	}
}

// AcquireShared attempts a shared (read) lock on key for holder. It
// succeeds when the key is unlocked or already held shared by anyone
// (including holder itself, in which case holder's reference count is
// incremented). It fails when an exclusive holder is present.
func (t *Table) AcquireShared(key Key, holder string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, exists := t.slots[key]
	if !exists {
		s = &slot{shared: make(map[string]int)}
		t.slots[key] = s
	} else if s.exclusiveHolder != "" {
		return false
	}

	s.shared[holder]++
	t.trackHolder(holder, key)
	return true
}

// AcquireExclusive attempts an exclusive (write) lock on key for holder.
// It succeeds only when the key is currently unlocked.
func (t *Table) AcquireExclusive(key Key, holder string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.slots[key]; exists {
		return false
	}

	t.slots[key] = &slot{exclusiveHolder: holder}
	t.trackHolder(holder, key)
	return true
}

// Release releases one reference holder has on key. For a shared lock
// this decrements the holder's reference count, removing the key once no
// holder has any references left; for an exclusive lock it removes the
// key outright. Returns false if holder does not hold key.
func (t *Table) Release(key Key, holder string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.releaseLocked(key, holder)
}

func (t *Table) releaseLocked(key Key, holder string) bool {
	s, exists := t.slots[key]
	if !exists {
		return false
	}

	switch {
	case s.exclusiveHolder == holder:
		delete(t.slots, key)
	case s.exclusiveHolder != "":
		return false
	default:
		count, held := s.shared[holder]
		if !held {
			return false
		}
		if count <= 1 {
			delete(s.shared, holder)
		} else {
			s.shared[holder] = count - 1
		}
		if len(s.shared) == 0 {
			delete(t.slots, key)
		}
	}

	t.untrackHolder(holder, key)
	return true
}

// ReleaseAll releases every lock currently held by holder, for use on
// client disconnect or timeout. Unlike Release, a shared lock holder
// acquires with more than one outstanding reference is evicted outright
// rather than decremented: ReleaseAll's contract is that the table
// contains zero entries naming holder once it returns, not that each
// key's reference count drops by one. Returns the number of keys
// released.
func (t *Table) ReleaseAll(holder string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := t.byHolder[holder]
	if len(keys) == 0 {
		return 0
	}

	// Copy keys before mutating, since evictLocked mutates byHolder[holder].
	toRelease := make([]Key, 0, len(keys))
	for k := range keys {
		toRelease = append(toRelease, k)
	}

	released := 0
	for _, k := range toRelease {
		if t.evictLocked(k, holder) {
			released++
		}
	}
	return released
}

// evictLocked removes every reference holder has on key, independent of
// a shared lock's reference count. Callers hold t.mu.
func (t *Table) evictLocked(key Key, holder string) bool {
	s, exists := t.slots[key]
	if !exists {
		return false
	}

	switch {
	case s.exclusiveHolder == holder:
		delete(t.slots, key)
	case s.exclusiveHolder != "":
		return false
	default:
		if _, held := s.shared[holder]; !held {
			return false
		}
		delete(s.shared, holder)
		if len(s.shared) == 0 {
			delete(t.slots, key)
		}
	}

	t.untrackHolder(holder, key)
	return true
}

// IsLocked reports whether key currently has any holder, and if so
// whether it is held exclusively.
func (t *Table) IsLocked(key Key) (locked, exclusive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, exists := t.slots[key]
	if !exists {
		return false, false
	}
	return true, s.exclusiveHolder != ""
}

// HasAnyLock reports whether any sentence index of path currently has a
// holder, shared or exclusive. Used to reject deletion of a locked file.
func (t *Table) HasAnyLock(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.slots {
		if key.Path == path {
			return true
		}
	}
	return false
}

func (t *Table) trackHolder(holder string, key Key) {
	keys, ok := t.byHolder[holder]
	if !ok {
		keys = make(map[Key]struct{})
		t.byHolder[holder] = keys
	}
	keys[key] = struct{}{}
}

func (t *Table) untrackHolder(holder string, key Key) {
	keys, ok := t.byHolder[holder]
	if !ok {
		return
	}
	delete(keys, key)
	if len(keys) == 0 {
		delete(t.byHolder, holder)
	}
}
