// Package config loads typed configuration structs from environment variables.
//
// Every package in notifykit declares its own Config struct with `env` tags
// (see pkg/redis, pkg/pg, pkg/email, pkg/notifier). This package parses those
// structs via github.com/caarlos0/env, loading a .env file first when one is
// present, and caches each config type so repeated loads are cheap and
// consistent across goroutines.
//
//	var cfg notifier.Config
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
package config
