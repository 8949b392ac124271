package pg

import "time"

// Config carries the pool, retry and migration settings for the durable
// notification store. All fields load from the environment; only the
// connection URL is mandatory.
type Config struct {
	// ConnectionString is the postgres:// URL of the notification database.
	ConnectionString string `env:"PG_CONN_URL,required"`
	// MaxOpenConns caps the pool size.
	MaxOpenConns int32 `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	// MaxIdleConns is the minimum number of connections kept warm.
	MaxIdleConns int32 `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	// HealthCheckPeriod is how often the pool pings idle connections.
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	// MaxConnIdleTime is how long a connection may sit idle before being closed.
	MaxConnIdleTime time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	// MaxConnLifetime bounds the total lifetime of a pooled connection.
	MaxConnLifetime time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`

	// RetryAttempts is how many times Connect tries before giving up.
	RetryAttempts int `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	// RetryInterval is the base delay between attempts; backoff is linear.
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`

	// MigrationsPath points at the directory holding the schema migrations.
	MigrationsPath string `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`
	// MigrationsTable is where the applied migration version is recorded.
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
}
