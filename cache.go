package sitegen

import (
	"sync"
	"time"
)

// historyLimit is the number of builds kept in the history cache.
const historyLimit = 50

// BuildCache is an in-memory cache of recent build records with TTL.
type BuildCache struct {
	mu      sync.RWMutex
	builds  []Build
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewBuildCache creates a BuildCache backed by the given Store.
func NewBuildCache(s *Store, ttl time.Duration) *BuildCache {
	return &BuildCache{store: s, ttl: ttl}
}

func (c *BuildCache) valid() bool {
	return c.builds != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *BuildCache) Invalidate() {
	c.mu.Lock()
	c.builds = nil
	c.mu.Unlock()
}

// Recent returns up to historyLimit builds, newest first. It tries a read lock
// first and only takes the write lock when a reload is needed.
func (c *BuildCache) Recent() ([]Build, error) {
	c.mu.RLock()
	if c.valid() {
		builds := c.builds
		c.mu.RUnlock()
		return builds, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.builds, nil
	}
	builds, err := c.store.ListBuilds(historyLimit)
	if err != nil {
		return nil, err
	}
	if builds == nil {
		builds = []Build{}
	}
	c.builds = builds
	c.fetched = time.Now()
	return c.builds, nil
}
