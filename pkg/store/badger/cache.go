// Package badger provides a Storage Node's optional persistent metadata
// warm-cache: path -> size/sentence-count/mtime, backed by an embedded
// BadgerDB. This is never a source of truth. On startup the Storage Node
// always re-scans its base directory from disk (spec.md §6 Persistent
// state); the cache only lets that scan skip recomputing an expensive
// sentence count when the cached mtime still matches disk.
package badger

import (
	"encoding/json"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
)

const keyPrefix = "f:"

// Entry is the cached metadata for one file.
type Entry struct {
	Path          string    `json:"path"`
	Size          int64     `json:"size"`
	SentenceCount int       `json:"sentence_count"`
	ModTime       time.Time `json:"mod_time"`
}

// Cache wraps an embedded BadgerDB instance scoped to one Storage Node.
type Cache struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a cache database rooted at dir.
func Open(dir string) (*Cache, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func key(path string) []byte {
	return []byte(keyPrefix + path)
}

// Put records or overwrites path's cached entry.
func (c *Cache) Put(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(entry.Path), data)
	})
}

// Get returns path's cached entry, if any.
func (c *Cache) Get(path string) (Entry, bool, error) {
	var entry Entry
	found := false

	err := c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key(path))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	return entry, found, err
}

// Delete removes path's cached entry, if any.
func (c *Cache) Delete(path string) error {
	return c.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(key(path))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// All returns every cached entry, keyed by path, for bulk reconciliation
// against a fresh directory scan.
func (c *Cache) All() (map[string]Entry, error) {
	out := make(map[string]Entry)

	err := c.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var entry Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			out[entry.Path] = entry
		}
		return nil
	})
	return out, err
}
