package notifier

import "time"

// Config tunes orchestrator behavior. Defaults match production settings;
// FallbackCategory is deliberately configurable instead of a hard-coded
// event-reminder bucket.
type Config struct {
	// FallbackCategory selects whose channel preferences apply when a
	// notification arrives with a category the preference schema does not
	// cover.
	FallbackCategory string `env:"NOTIFIER_FALLBACK_CATEGORY" envDefault:"event-reminder"`
	// MaxDeliveryAttempts caps retries per delivery attempt.
	MaxDeliveryAttempts int `env:"NOTIFIER_MAX_DELIVERY_ATTEMPTS" envDefault:"3"`
	// UnreadCountTTL bounds staleness of the cached unread counter; fan-out
	// invalidation keeps it fresher in the common case.
	UnreadCountTTL time.Duration `env:"NOTIFIER_UNREAD_COUNT_TTL" envDefault:"60s"`
	// UnreadCacheSize caps the number of users with a cached unread count.
	UnreadCacheSize int `env:"NOTIFIER_UNREAD_CACHE_SIZE" envDefault:"10000"`
	// SchedulerInterval is how often deferred notifications are checked for
	// becoming due.
	SchedulerInterval time.Duration `env:"NOTIFIER_SCHEDULER_INTERVAL" envDefault:"30s"`
	// SchedulerBatchSize caps how many due notifications are released per tick.
	SchedulerBatchSize int `env:"NOTIFIER_SCHEDULER_BATCH_SIZE" envDefault:"100"`
}
