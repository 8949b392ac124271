package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/cache"
)

func TestTTLCache_SetGet(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[string, int](10, time.Minute)
	c.Set("user-1", 5)

	got, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, 5, got)

	_, ok = c.Get("user-2")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var mu sync.Mutex
	current := now

	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	c := cache.NewTTLCache(10, time.Minute, cache.WithClock[string, int](clock))
	c.Set("user-1", 3)

	got, ok := c.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, 3, got)

	mu.Lock()
	current = now.Add(61 * time.Second)
	mu.Unlock()

	_, ok = c.Get("user-1")
	assert.False(t, ok, "expired entry must be a miss")
}

func TestTTLCache_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now.Add(24 * time.Hour) }

	c := cache.NewTTLCache(10, 0, cache.WithClock[string, string](clock))
	c.Set("k", "v")

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestTTLCache_LRUEviction(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[string, int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch "a" so "b" becomes the least recently used entry.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestTTLCache_Delete(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[string, int](10, time.Minute)
	c.Set("user-1", 5)

	removed, ok := c.Delete("user-1")
	require.True(t, ok)
	assert.Equal(t, 5, removed)

	_, ok = c.Get("user-1")
	assert.False(t, ok)

	_, ok = c.Delete("user-1")
	assert.False(t, ok)
}

func TestTTLCache_EvictCallback(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := cache.NewTTLCache(1, time.Minute, cache.WithEvictCallback[string, int](func(k string, _ int) {
		evicted = append(evicted, k)
	}))

	c.Set("a", 1)
	c.Set("b", 2) // evicts "a"
	c.Clear()     // evicts "b"

	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := cache.NewTTLCache[int, int](100, time.Minute)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(i, i)
			c.Get(i)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}
