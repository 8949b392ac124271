package cache

import (
	"container/list"
	"sync"
	"time"
)

type ttlEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe cache with per-entry expiry and LRU eviction.
// When the cache reaches its capacity, the least recently used item is
// evicted; expired entries are treated as misses and removed lazily on
// access. A zero TTL stores entries without expiry.
type TTLCache[K comparable, V any] struct {
	capacity   int
	defaultTTL time.Duration
	items      map[K]*list.Element
	eviction   *list.List
	mu         sync.Mutex
	onEvict    func(key K, value V) // Callback for cleanup when items are evicted
	now        func() time.Time     // Injectable clock for tests
}

// TTLCacheOption configures a TTLCache.
type TTLCacheOption[K comparable, V any] func(*TTLCache[K, V])

// WithEvictCallback sets a callback invoked for every evicted or expired entry.
func WithEvictCallback[K comparable, V any](fn func(key K, value V)) TTLCacheOption[K, V] {
	return func(c *TTLCache[K, V]) {
		c.onEvict = fn
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock[K comparable, V any](now func() time.Time) TTLCacheOption[K, V] {
	return func(c *TTLCache[K, V]) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTTLCache creates a cache holding at most capacity entries, each expiring
// defaultTTL after being set. The capacity must be positive, otherwise it panics.
func NewTTLCache[K comparable, V any](capacity int, defaultTTL time.Duration, opts ...TTLCacheOption[K, V]) *TTLCache[K, V] {
	if capacity <= 0 {
		panic("TTL cache capacity must be positive")
	}
	c := &TTLCache[K, V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[K]*list.Element),
		eviction:   list.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value and marks it as recently used.
// Expired entries are removed and reported as misses.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		if c.expired(entry) {
			c.removeElement(elem)
			var zero V
			return zero, false
		}
		c.eviction.MoveToFront(elem)
		return entry.value, true
	}

	var zero V
	return zero, false
}

// Set stores a value with the cache's default TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL, overriding the default.
// If the cache is at capacity, the least recently used entry is evicted.
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*ttlEntry[K, V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	entry := &ttlEntry[K, V]{key: key, value: value, expiresAt: expiresAt}
	elem := c.eviction.PushFront(entry)
	c.items[key] = elem

	if c.eviction.Len() > c.capacity {
		c.evictOldest()
	}
}

// Delete removes an entry from the cache.
// Returns the removed value and true if it existed, zero value and false otherwise.
func (c *TTLCache[K, V]) Delete(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*ttlEntry[K, V])
		c.removeElement(elem)
		return entry.value, true
	}

	var zero V
	return zero, false
}

// Len returns the number of stored entries, including not-yet-collected
// expired ones.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Clear removes all entries from the cache.
// If an evict callback is set, it's called for each entry.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for _, elem := range c.items {
			entry := elem.Value.(*ttlEntry[K, V])
			c.onEvict(entry.key, entry.value)
		}
	}

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
}

func (c *TTLCache[K, V]) expired(entry *ttlEntry[K, V]) bool {
	return !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt)
}

// Must be called with lock held.
func (c *TTLCache[K, V]) evictOldest() {
	elem := c.eviction.Back()
	if elem != nil {
		c.removeElement(elem)
	}
}

// Must be called with lock held.
func (c *TTLCache[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*ttlEntry[K, V])
	delete(c.items, entry.key)

	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
