package cache

import (
	"sync"

	"github.com/cuemby/modio-go/pkg/types"
)

// ModInfoCache holds the most recently fetched profile for each mod ID with
// no expiry: it is only ever invalidated explicitly, on a mutation of that
// mod or a change of the active user.
type ModInfoCache struct {
	mu   sync.RWMutex
	mods map[types.ModID]types.ModProfile
}

// NewModInfoCache returns an empty cache.
func NewModInfoCache() *ModInfoCache {
	return &ModInfoCache{mods: make(map[types.ModID]types.ModProfile)}
}

// Get returns the cached profile for id, if any.
func (c *ModInfoCache) Get(id types.ModID) (types.ModProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.mods[id]
	return p, ok
}

// Put stores profile, replacing whatever was cached for its ID.
func (c *ModInfoCache) Put(profile types.ModProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mods[profile.ID] = profile
}

// Invalidate drops the cached profile for id, if present. Call this before
// the next get-mod-info after any mutation of that mod (rating, comment,
// subscription change, re-install).
func (c *ModInfoCache) Invalidate(id types.ModID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.mods, id)
}

// Reset drops every cached profile, as required when the active user
// changes.
func (c *ModInfoCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mods = make(map[types.ModID]types.ModProfile)
}
