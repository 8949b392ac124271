// Package pg bootstraps the PostgreSQL layer behind the durable notification
// store: connection pooling via pgx/v5, schema migrations via goose, and a
// Ping-based healthcheck.
//
// The notifier package defines the storage interfaces; its Postgres
// implementation (notifier.NewPgStorage) takes the *pgxpool.Pool produced
// here. Config is populated from PG_* environment variables via pkg/config.
package pg
