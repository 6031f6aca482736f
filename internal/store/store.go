// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store keeps the small key/value state shared between contexts:
// user settings and the most recently observed page title.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	KeyLatestTitle = "latestTitle"
	KeyFPS         = "fps"
)

var (
	ErrClosed         = errors.New("store is closed")
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrEmptyKey       = errors.New("empty key")
)

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the database file (sqlite) or directory (badger).
	Path  string
	Redis RedisConfig
}

// Open creates a Store for the configured backend. sqlite is the default.
func Open(opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSqliteStore(opts.Path, DefaultSqliteConfig())
	case "badger":
		return OpenBadgerStore(opts.Path)
	case "redis":
		return OpenRedisStore(opts.Redis)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
