package rag

import (
	"sync"
	"time"
)

type queryCacheEntry struct {
	response Response
	storedAt time.Time
}

// queryCache holds recent responses keyed by the query fingerprint.
type queryCache struct {
	mu         sync.Mutex
	entries    map[string]queryCacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func newQueryCache(ttl time.Duration, maxEntries int) *queryCache {
	return &queryCache{
		entries:    make(map[string]queryCacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *queryCache) get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Response{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return Response{}, false
	}
	return entry.response, true
}

func (c *queryCache) put(key string, response Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = queryCacheEntry{response: response, storedAt: c.now()}
}

func (c *queryCache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.storedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

func (c *queryCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *queryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
