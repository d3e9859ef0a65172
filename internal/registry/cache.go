package registry

import (
	"sync"
	"time"
)

// memoryCache is the first-level participant cache. Expiry is checked on
// read rather than via background eviction, so cold keys cost nothing.
type memoryCache struct {
	mu      sync.RWMutex
	records map[string]Record
	sets    map[string]cachedSet
}

type cachedSet struct {
	participants []Participant
	fetchedAt    time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		records: make(map[string]Record),
		sets:    make(map[string]cachedSet),
	}
}

// get returns the cached record and whether it is still fresh. A stale
// record is still returned so callers can use it as an unavailability
// fallback.
func (c *memoryCache) get(key string, ttl time.Duration, now time.Time) (Record, bool, bool) {
	c.mu.RLock()
	rec, ok := c.records[key]
	c.mu.RUnlock()
	if !ok {
		return Record{}, false, false
	}
	return rec, true, now.Sub(rec.FetchedAt) < ttl
}

func (c *memoryCache) put(key string, rec Record) {
	c.mu.Lock()
	c.records[key] = rec
	c.mu.Unlock()
}

func (c *memoryCache) getSet(key string, ttl time.Duration, now time.Time) ([]Participant, bool, bool) {
	c.mu.RLock()
	set, ok := c.sets[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, false
	}
	return set.participants, true, now.Sub(set.fetchedAt) < ttl
}

func (c *memoryCache) putSet(key string, participants []Participant, now time.Time) {
	c.mu.Lock()
	c.sets[key] = cachedSet{participants: participants, fetchedAt: now}
	c.mu.Unlock()
}
