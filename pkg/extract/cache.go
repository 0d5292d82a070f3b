package extract

import (
	"sync"
	"time"
)

// Cache keeps extracted messages by source message id so export, summary and
// recreate commands can refer back to them. Entries age out under the same
// TTL discipline as sessions.
type Cache struct {
	mu      sync.RWMutex
	entries map[int]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	msg      *ExtractedMessage
	storedAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[int]cacheEntry),
		ttl:     ttl,
	}
}

func (c *Cache) Put(msg *ExtractedMessage) {
	c.mu.Lock()
	c.entries[msg.SourceID] = cacheEntry{msg: msg, storedAt: time.Now()}
	c.mu.Unlock()
}

func (c *Cache) Get(sourceID int) (*ExtractedMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[sourceID]
	if !ok {
		return nil, false
	}
	return entry.msg, true
}

// Sweep removes entries stored before now minus the TTL and returns the
// count removed.
func (c *Cache) Sweep(now time.Time) int {
	cutoff := now.Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, entry := range c.entries {
		if entry.storedAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
