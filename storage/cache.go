package storage

import (
	"errors"
	"sort"
)

type cacheEntry struct {
	value   []byte
	deleted bool
}

// CacheDB buffers writes on top of a parent Database. Reads fall through to
// the parent for keys that were not touched. Nothing reaches the parent until
// Commit; Discard drops every buffered mutation. Overlays nest, which is how
// the runtime gives a dispatched call its own rollback scope inside an
// extrinsic.
//
// CacheDB is not safe for concurrent use.
type CacheDB struct {
	parent Database
	dirty  map[string]cacheEntry
}

// NewCacheDB wraps parent in a write buffer.
func NewCacheDB(parent Database) *CacheDB {
	return &CacheDB{parent: parent, dirty: make(map[string]cacheEntry)}
}

func (c *CacheDB) Put(key []byte, value []byte) error {
	c.dirty[string(key)] = cacheEntry{value: append([]byte(nil), value...)}
	return nil
}

func (c *CacheDB) Get(key []byte) ([]byte, error) {
	if entry, ok := c.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	value, err := c.parent.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (c *CacheDB) Delete(key []byte) error {
	c.dirty[string(key)] = cacheEntry{deleted: true}
	return nil
}

// Close is a no-op; the parent owns the underlying handle.
func (c *CacheDB) Close() {}

// Pending reports the number of buffered mutations.
func (c *CacheDB) Pending() int { return len(c.dirty) }

// Commit flushes buffered writes to the parent in key order and clears the
// buffer. Ordering keeps LevelDB write patterns deterministic across nodes.
func (c *CacheDB) Commit() error {
	keys := make([]string, 0, len(c.dirty))
	for key := range c.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		entry := c.dirty[key]
		var err error
		if entry.deleted {
			err = c.parent.Delete([]byte(key))
		} else {
			err = c.parent.Put([]byte(key), entry.value)
		}
		if err != nil {
			return err
		}
	}
	c.dirty = make(map[string]cacheEntry)
	return nil
}

// Discard drops every buffered mutation.
func (c *CacheDB) Discard() {
	c.dirty = make(map[string]cacheEntry)
}
