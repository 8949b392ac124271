package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter defines the interface for rate limiting implementations.
type Limiter interface {
	// Allow records one admission attempt for the key and reports whether it
	// is within budget. The counter is incremented even for denied attempts.
	Allow(ctx context.Context, key string) (*Result, error)
}

// Result describes the outcome of a single admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Config holds fixed-window limiter settings.
type Config struct {
	// Budget is the number of admissions allowed per window per key.
	Budget int `env:"RATE_LIMIT_BUDGET" envDefault:"100"`
	// Window is the length of the counting window.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
	// KeyPrefix namespaces limiter keys in shared stores.
	KeyPrefix string `env:"RATE_LIMIT_KEY_PREFIX" envDefault:"notification_rate_limit:"`
}

func (c Config) validate() error {
	if c.Budget <= 0 {
		return fmt.Errorf("%w: budget must be positive, got %d", ErrInvalidConfig, c.Budget)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %v", ErrInvalidConfig, c.Window)
	}
	return nil
}

// FixedWindow implements a fixed-window counter limiter.
//
// The window starts on the first increment for a key and expires after
// Config.Window; counter loss on expiry is intentional (fail-open after the
// window resets). The increment-then-check sequence is atomic at the store
// layer so two concurrent callers can never both observe "under limit" and
// exceed the budget by one.
type FixedWindow struct {
	store  Store
	config Config
}

// NewFixedWindow creates a fixed-window limiter backed by the given store.
func NewFixedWindow(store Store, config Config) (*FixedWindow, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &FixedWindow{
		store:  store,
		config: config,
	}, nil
}

func (fw *FixedWindow) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := fw.store.Increment(ctx, fw.config.KeyPrefix+key, fw.config.Window)
	if err != nil {
		return nil, err
	}

	remaining := fw.config.Budget - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= int64(fw.config.Budget),
		Limit:     fw.config.Budget,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for the given key.
func (fw *FixedWindow) Reset(ctx context.Context, key string) error {
	return fw.store.Reset(ctx, fw.config.KeyPrefix+key)
}
