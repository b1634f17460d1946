package locktable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireSharedOnEmptyKeySucceeds(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}
	assert.True(t, tbl.AcquireShared(key, "alice"))
}

func TestAcquireSharedByMultipleHoldersSucceeds(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}
	assert.True(t, tbl.AcquireShared(key, "alice"))
	assert.True(t, tbl.AcquireShared(key, "bob"))
}

func TestAcquireSharedIdempotentPerHolder(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}
	assert.True(t, tbl.AcquireShared(key, "alice"))
	assert.True(t, tbl.AcquireShared(key, "alice"))

	// First release should not clear the key; alice's second reference remains.
	assert.True(t, tbl.Release(key, "alice"))
	locked, exclusive := tbl.IsLocked(key)
	assert.True(t, locked)
	assert.False(t, exclusive)

	assert.True(t, tbl.Release(key, "alice"))
	locked, _ = tbl.IsLocked(key)
	assert.False(t, locked)
}

func TestAcquireExclusiveOnEmptyKeySucceeds(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 3}
	assert.True(t, tbl.AcquireExclusive(key, "alice"))
}

func TestExclusiveLockContentionReturnsFalse(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 3}
	assert.True(t, tbl.AcquireExclusive(key, "alice"))
	assert.False(t, tbl.AcquireExclusive(key, "bob"))
}

func TestSharedExclusiveMutualExclusion(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}

	assert.True(t, tbl.AcquireShared(key, "alice"))
	assert.False(t, tbl.AcquireExclusive(key, "bob"))

	assert.True(t, tbl.Release(key, "alice"))
	assert.True(t, tbl.AcquireExclusive(key, "bob"))
}

func TestExclusiveBlocksShared(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}

	assert.True(t, tbl.AcquireExclusive(key, "alice"))
	assert.False(t, tbl.AcquireShared(key, "bob"))
}

func TestReleaseNotHeldReturnsFalse(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}
	assert.False(t, tbl.Release(key, "nobody"))
}

func TestReleaseWrongHolderUnderExclusiveFails(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}
	assert.True(t, tbl.AcquireExclusive(key, "alice"))
	assert.False(t, tbl.Release(key, "bob"))
}

func TestReleaseAllClearsEveryLockForHolder(t *testing.T) {
	tbl := New()
	k1 := Key{Path: "a.txt", SentenceIdx: 0}
	k2 := Key{Path: "b.txt", SentenceIdx: 1}

	tbl.AcquireExclusive(k1, "alice")
	tbl.AcquireShared(k2, "alice")

	released := tbl.ReleaseAll("alice")
	assert.Equal(t, 2, released)

	locked, _ := tbl.IsLocked(k1)
	assert.False(t, locked)
	locked, _ = tbl.IsLocked(k2)
	assert.False(t, locked)
}

func TestReleaseAllDoesNotAffectOtherHolders(t *testing.T) {
	tbl := New()
	key := Key{Path: "a.txt", SentenceIdx: 0}

	tbl.AcquireShared(key, "alice")
	tbl.AcquireShared(key, "bob")

	tbl.ReleaseAll("alice")

	locked, exclusive := tbl.IsLocked(key)
	assert.True(t, locked)
	assert.False(t, exclusive)
}

func TestReleaseAllEvictsDoublyAcquiredSharedLock(t *testing.T) {
	tbl := New()
	key := Key{Path: "a.txt", SentenceIdx: 0}

	// alice acquires the same shared key twice, as two requests on the
	// same connection each holding a reference would.
	assert.True(t, tbl.AcquireShared(key, "alice"))
	assert.True(t, tbl.AcquireShared(key, "alice"))

	released := tbl.ReleaseAll("alice")
	assert.Equal(t, 1, released)

	locked, _ := tbl.IsLocked(key)
	assert.False(t, locked, "ReleaseAll must evict a holder regardless of its reference count")

	// A fresh exclusive acquire must now succeed; a stale reference would
	// have left the key held shared forever.
	assert.True(t, tbl.AcquireExclusive(key, "bob"))
}

func TestReleaseAllOnHolderWithNoLocksIsNoop(t *testing.T) {
	tbl := New()
	assert.Equal(t, 0, tbl.ReleaseAll("nobody"))
}

func TestFailedAcquireDoesNotMutateState(t *testing.T) {
	tbl := New()
	key := Key{Path: "doc.txt", SentenceIdx: 0}

	tbl.AcquireExclusive(key, "alice")
	tbl.AcquireExclusive(key, "bob") // fails

	// alice still holds exclusively; bob holds nothing.
	assert.Equal(t, 0, tbl.ReleaseAll("bob"))
	assert.Equal(t, 1, tbl.ReleaseAll("alice"))
}

func TestHasAnyLockReflectsAnySentenceIndex(t *testing.T) {
	tbl := New()
	assert.False(t, tbl.HasAnyLock("doc.txt"))

	tbl.AcquireShared(Key{Path: "doc.txt", SentenceIdx: 3}, "alice")
	assert.True(t, tbl.HasAnyLock("doc.txt"))
	assert.False(t, tbl.HasAnyLock("other.txt"))

	tbl.Release(Key{Path: "doc.txt", SentenceIdx: 3}, "alice")
	assert.False(t, tbl.HasAnyLock("doc.txt"))
}
