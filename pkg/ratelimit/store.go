package ratelimit

import (
	"context"
	"time"
)

// Store defines the interface for rate limit counter backends.
type Store interface {
	// Increment atomically increments the counter for key and returns the
	// post-increment count together with the window reset time. The first
	// increment for a key starts a new window of the given length; the
	// counter expires with the window.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// Reset clears the counter for the given key.
	Reset(ctx context.Context, key string) error
}
