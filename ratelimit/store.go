// Package ratelimit stores the last execution of rate-limited rule actions so
// that an action runs at most once per time window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey is returned when a store is asked about an empty key.
var ErrEmptyKey = errors.New("rate limit key is empty")

// Store records action executions per key.
type Store interface {
	// Acquire reports whether an action identified by key may run now. When it
	// returns true the execution is recorded and further calls return false
	// until window has elapsed.
	Acquire(ctx context.Context, key string, window time.Duration) (bool, error)

	// Reset forgets the last execution recorded for key.
	Reset(ctx context.Context, key string) error
}
