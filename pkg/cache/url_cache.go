// Package cache holds everything the SDK keeps in memory across calls: the
// short-TTL response cache keyed by request URL, the un-expiring mod-info
// cache invalidated explicitly on mutation, and process-wide session data
// (auth token, rate-limit flag) read under a lock for point-in-time
// snapshots.
package cache

import (
	"hash/fnv"
	"sync"
	"time"
	"weak"

	"github.com/cuemby/modio-go/pkg/async"
	"github.com/cuemby/modio-go/pkg/dynbuf"
)

// DefaultExpiry is how long a cached GET response is served before the next
// request for the same resource path goes back to the network.
const DefaultExpiry = 15 * time.Second

// urlCacheEntry is one cached response body plus the timer that evicts it.
type urlCacheEntry struct {
	body  *dynbuf.Buffer
	timer *async.Timer
}

// URLCache maps a fully-formatted resource path's FNV-32a hash to its most
// recently cached response body. Reinserting a key that is already cached
// resets its expiry instead of accumulating timers.
type URLCache struct {
	mu      sync.Mutex
	entries map[uint32]*urlCacheEntry
}

// NewURLCache returns an empty cache.
func NewURLCache() *URLCache {
	return &URLCache{entries: make(map[uint32]*urlCacheEntry)}
}

// HashKey returns the FNV-32a hash of a fully-formatted resource path, the
// cache's lookup key.
func HashKey(resourcePath string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(resourcePath))
	return h.Sum32()
}

// Insert caches body under resourcePath's key for expiry. Calling Insert
// again for the same path before it expires replaces the body and resets
// the timer rather than stacking a second eviction.
func (c *URLCache) Insert(resourcePath string, body *dynbuf.Buffer, expiry time.Duration) {
	key := HashKey(resourcePath)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.timer.Cancel()
		existing.body = body.Clone()
		existing.timer = c.newEvictionTimer(key, expiry)
		return
	}

	entry := &urlCacheEntry{body: body.Clone()}
	entry.timer = c.newEvictionTimer(key, expiry)
	c.entries[key] = entry
}

// newEvictionTimer arms a timer that removes key from the cache once expiry
// elapses. The callback closes over a weak.Pointer to the cache rather than
// c itself: if Clear drops this cache's entries wholesale and the cache
// itself is later collected, a still-pending timer's fire is a no-op
// instead of resurrecting a reference to a cache nobody holds anymore.
func (c *URLCache) newEvictionTimer(key uint32, expiry time.Duration) *async.Timer {
	weakSelf := weak.Make(c)
	return async.AfterFunc(expiry, func() {
		owner := weakSelf.Value()
		if owner == nil {
			return
		}
		owner.evict(key)
	})
}

func (c *URLCache) evict(key uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Fetch returns a clone of the cached body for resourcePath, if present and
// not yet expired.
func (c *URLCache) Fetch(resourcePath string) (*dynbuf.Buffer, bool) {
	key := HashKey(resourcePath)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry.body.Clone(), true
}

// Clear cancels every pending eviction timer and drops all cached bodies.
func (c *URLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		entry.timer.Cancel()
	}
	c.entries = make(map[uint32]*urlCacheEntry)
}
