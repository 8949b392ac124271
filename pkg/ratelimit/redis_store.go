package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript performs the increment and window-expiry setup in a single
// atomic server-side operation. PTTL is read in the same script so the reset
// time reported to callers matches the key's actual expiry.
var incrementScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisStore implements Store using a shared Redis counter, allowing the
// limit to hold across horizontally scaled service replicas.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilStore
	}
	return &RedisStore{client: client}, nil
}

func (rs *RedisStore) Increment(ctx context.Context, key string, windowLen time.Duration) (int64, time.Time, error) {
	res, err := incrementScript.Run(ctx, rs.client, []string{key}, windowLen.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreFailure, err)
	}

	values, ok := res.([]any)
	if !ok || len(values) != 2 {
		return 0, time.Time{}, ErrStoreFailure
	}

	count, ok := values[0].(int64)
	if !ok {
		return 0, time.Time{}, ErrStoreFailure
	}

	ttlMillis, ok := values[1].(int64)
	if !ok {
		return 0, time.Time{}, ErrStoreFailure
	}

	// PTTL returns -1 for keys without expiry; treat that as a full window
	// so a lost expiry does not report a reset time in the past.
	resetAt := time.Now().Add(windowLen)
	if ttlMillis >= 0 {
		resetAt = time.Now().Add(time.Duration(ttlMillis) * time.Millisecond)
	}

	return count, resetAt, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, key).Err(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}
