// Package agent implements the background caching and notification
// agent. It runs its own event loop in a separate goroutine and talks
// to the rest of the program only through typed messages: Install,
// Activate, Fetch and Push. No memory is shared with the feed client.
package agent

import (
	"fmt"

	"github.com/boltdb/bolt"
)

// Cache is the agent's named asset store, a bolt database with one
// bucket per cache name. Cache-version migration works by deleting
// every bucket whose name differs from the current one.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache database: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores body under key in the named cache, creating the cache if
// needed.
func (c *Cache) Put(cacheName, key string, body []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		buc, err := tx.CreateBucketIfNotExists([]byte(cacheName))
		if err != nil {
			return err
		}
		return buc.Put([]byte(key), body)
	})
}

// Get retrieves the body stored under key in the named cache. The
// second return value reports whether the key was present.
func (c *Cache) Get(cacheName, key string) (body []byte, ok bool, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		buc := tx.Bucket([]byte(cacheName))
		if buc == nil {
			return nil
		}
		if v := buc.Get([]byte(key)); v != nil {
			body = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return
}

// DeleteOthers removes every cache whose name differs from keep. Run on
// activation so a new cache version sweeps out its predecessors.
func (c *Cache) DeleteOthers(keep string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		var stale [][]byte
		err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if string(name) != keep {
				stale = append(stale, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range stale {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
