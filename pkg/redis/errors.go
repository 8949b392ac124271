package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready before the connect timeout")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
