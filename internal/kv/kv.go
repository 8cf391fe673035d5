package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that the key does not exist or has expired.
	ErrNotFound = errors.New("kv: key not found")
	// ErrUnavailable reports that the backend could not be reached. Callers
	// treat this as a signal to enter their degraded mode.
	ErrUnavailable = errors.New("kv: store unavailable")
)

// Store is the transient-state contract shared by all backends. Values are
// opaque bytes; every write carries a TTL. Implementations must be safe for
// concurrent use.
type Store interface {
	// Set writes value under key with the given TTL. A ttl <= 0 is invalid.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically reads and removes key. At most one concurrent
	// caller observes the value; the rest get ErrNotFound.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Incr atomically increments the integer counter at key and returns
	// the new value. A missing key counts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets or replaces the TTL on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
