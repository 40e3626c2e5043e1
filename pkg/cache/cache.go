// Package cache provides the injected TTL store used for auth data and webhook
// reconciliation state, with an in-process backend and a Redis backend for
// multi-instance deployments.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("cache closed")

// Store is a keyed expiring map.
type Store[V any] interface {
	// Get returns the value and true when present and younger than TTL.
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	Invalidate(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	TTL() time.Duration
}

// Ledger records keys that may be acted on at most once within its retention.
type Ledger interface {
	// Claim returns true for the first caller of a key and false afterwards.
	Claim(ctx context.Context, key string) (bool, error)
	// Release gives a claim back after the guarded action failed.
	Release(ctx context.Context, key string) error
}
