package resolver

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Value is the in-memory projection of a link record. A tombstone marks a
// code as definitively not resolvable, covering both deleted and
// never-existent codes so repeat lookups of dead codes never reach the store.
type Value struct {
	Destination string
	Hidden      bool
	Tombstone   bool
}

// CacheConfig bounds the resolution cache.
type CacheConfig struct {
	// Capacity is the maximum number of entries before LRU eviction.
	Capacity int
	// TTL is the absolute lifetime of an entry. Zero disables it.
	TTL time.Duration
	// IdleTTL expires entries that have not been read recently. Zero disables it.
	IdleTTL time.Duration
}

// Cache is a bounded LRU mapping codes to resolved values or tombstones.
// Population of misses is single-flighted: at most one populate call runs per
// code across all concurrent callers, and every waiter receives that call's
// outcome. Errors are never cached.
type Cache struct {
	capacity int
	ttl      time.Duration
	idleTTL  time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front = most recently used

	flight singleflight.Group
	clock  func() time.Time
}

type cacheEntry struct {
	code      string
	value     Value
	expiresAt time.Time // zero means no absolute deadline
	idleAt    time.Time // zero means no idle deadline
}

// NewCache constructs a resolution cache.
func NewCache(cfg CacheConfig) *Cache {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1000
	}

	return &Cache{
		capacity: capacity,
		ttl:      cfg.TTL,
		idleTTL:  cfg.IdleTTL,
		entries:  make(map[string]*list.Element, capacity),
		lru:      list.New(),
		clock:    time.Now,
	}
}

// Get returns a live, unexpired entry without touching the store.
func (c *Cache) Get(code string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[code]
	if !ok {
		return Value{}, false
	}

	entry := elem.Value.(*cacheEntry)
	now := c.clock()
	if c.expired(entry, now) {
		c.removeLocked(elem)
		return Value{}, false
	}

	if c.idleTTL > 0 {
		entry.idleAt = now.Add(c.idleTTL)
	}
	c.lru.MoveToFront(elem)

	return entry.value, true
}

// GetOrPopulate returns the cached value for code, populating it through the
// supplied closure on a miss. The boolean reports whether the value came from
// cache. Concurrent callers for the same code share one populate call; the
// closure runs with the first caller's context, so a deadline on that context
// releases every waiter with the same error.
func (c *Cache) GetOrPopulate(ctx context.Context, code string, populate func(context.Context) (Value, error)) (Value, bool, error) {
	if value, ok := c.Get(code); ok {
		return value, true, nil
	}

	result, err, _ := c.flight.Do(code, func() (interface{}, error) {
		// A flight that completed between our miss and joining the group may
		// already have stored the value.
		if value, ok := c.Get(code); ok {
			return value, nil
		}

		value, err := populate(ctx)
		if err != nil {
			return nil, err
		}

		c.Put(code, value)
		return value, nil
	})
	if err != nil {
		return Value{}, false, err
	}

	return result.(Value), false, nil
}

// Put stores a value unconditionally, resetting its deadlines. The engine uses
// it to write through fresh creations and delete tombstones so a burst of
// lookups right after a mutation cannot repopulate stale state from a lagging
// read.
func (c *Cache) Put(code string, value Value) {
	now := c.clock()
	entry := &cacheEntry{code: code, value: value}
	if c.ttl > 0 {
		entry.expiresAt = now.Add(c.ttl)
	}
	if c.idleTTL > 0 {
		entry.idleAt = now.Add(c.idleTTL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[code]; ok {
		elem.Value = entry
		c.lru.MoveToFront(elem)
		return
	}

	c.entries[code] = c.lru.PushFront(entry)
	for len(c.entries) > c.capacity {
		c.evictLocked()
	}
}

// Len reports the number of entries currently held, including expired ones
// not yet collected.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) expired(entry *cacheEntry, now time.Time) bool {
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		return true
	}
	if !entry.idleAt.IsZero() && now.After(entry.idleAt) {
		return true
	}
	return false
}

func (c *Cache) evictLocked() {
	tail := c.lru.Back()
	if tail == nil {
		return
	}
	c.removeLocked(tail)
}

func (c *Cache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.entries, entry.code)
}
