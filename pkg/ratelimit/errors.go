package ratelimit

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")
	ErrNilStore      = errors.New("rate limiter store cannot be nil")
	ErrStoreFailure  = errors.New("rate limiter store operation failed")
)
