package cache

import (
	"sync"
	"time"
)

// entry is a stored value with its expiry bookkeeping. Values are opaque
// to the cache; callers own the type assertions.
type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

// expired reports whether the entry is logically absent at now, whether or
// not the sweeper has physically removed it yet.
func (e entry) expired(now time.Time) bool {
	return now.After(e.storedAt.Add(e.ttl))
}

// Cache is a string-keyed expiring store. Every entry carries its own TTL
// with a cache-wide default. Reads perform lazy expiry; a background sweep
// bounds memory for keys that are written once and never read again.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache with the given default TTL and starts the background
// sweeper. Close must be called to stop it.
func New(defaultTTL, sweepInterval time.Duration) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// Get returns the value for key if present and unexpired. An expired entry
// is deleted and treated as absent.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an entry-specific TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:    value,
		storedAt: time.Now(),
		ttl:      ttl,
	}
}

// Has reports whether key holds an unexpired entry.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of physically present entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrCompute returns the cached value for key, or invokes fn, stores its
// result under key with ttl, and returns it. Concurrent misses are not
// deduplicated: two callers may both invoke fn and the last write wins.
func (c *Cache) GetOrCompute(key string, fn func() (interface{}, error), ttl time.Duration) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fn()
	if err != nil {
		return nil, err
	}
	c.SetWithTTL(key, v, ttl)
	return v, nil
}

// Close stops the background sweeper. The cache remains usable afterward,
// with lazy expiry only.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep proactively deletes expired entries.
func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}
