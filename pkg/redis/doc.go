// Package redis provides connection management for the Redis instance shared
// by the rate limiter and the cross-instance fan-out bus.
//
// Connect retries until the server is reachable, Healthcheck wraps Ping for
// the orchestrator's health endpoint, and Config is populated from the
// environment via pkg/config.
package redis
