// Package cache provides a generic in-process cache with per-entry TTL and
// LRU eviction.
//
// It backs the read-mostly hot paths of the notifier: unread counters are
// cached for a short TTL as a safety net against missed invalidations, and
// user preferences are cached cache-aside with explicit deletion on every
// write so stale opt-outs are never served.
//
//	unread := cache.NewTTLCache[string, int](10000, time.Minute)
//	unread.Set("user-123", 7)
//	if n, ok := unread.Get("user-123"); ok {
//		// serve cached count
//	}
package cache
