package service

import (
	"sync"
	"time"
)

// dedupeCache remembers bar keys long enough to absorb at-least-once
// redelivery from the transport. Expired entries are swept opportunistically
// on insert, so no background goroutine is needed.
type dedupeCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func newDedupeCache(ttl time.Duration) *dedupeCache {
	return &dedupeCache{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Seen records key and reports whether it was already present and
// unexpired. The first caller for a key gets false.
func (c *dedupeCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expires, ok := c.seen[key]; ok && now.Before(expires) {
		return true
	}
	c.sweepLocked(now)
	c.seen[key] = now.Add(c.ttl)
	return false
}

func (c *dedupeCache) sweepLocked(now time.Time) {
	for key, expires := range c.seen {
		if now.After(expires) {
			delete(c.seen, key)
		}
	}
}
