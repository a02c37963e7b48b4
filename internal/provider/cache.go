package provider

import (
	"sync"
	"time"

	"github.com/arcsign/ledgerkit/internal/adapter"
)

type cacheEntry struct {
	value        adapter.RawRow
	providerName string
	expiresAt    time.Time
}

// responseCache is PM's cache of successful operation results, keyed by
// Operation.CacheKey. Expiry is strict: once an entry's TTL elapses it is
// treated as absent, never returned to shadow a newly failing provider.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newResponseCache(ttl time.Duration) *responseCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &responseCache{entries: make(map[string]cacheEntry), ttl: ttl}
}

func (c *responseCache) get(key string) (adapter.RawRow, string, bool) {
	if key == "" {
		return adapter.RawRow{}, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return adapter.RawRow{}, "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return adapter.RawRow{}, "", false
	}
	return entry.value, entry.providerName, true
}

func (c *responseCache) set(key, providerName string, value adapter.RawRow) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, providerName: providerName, expiresAt: time.Now().Add(c.ttl)}
}
