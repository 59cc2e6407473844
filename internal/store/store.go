// Package store defines the session-scoped state store contract (spec §4.C)
// implemented by three backends: internal/store/memorystore,
// internal/store/filestore, and internal/store/redisstore. The store itself
// only ever sees flat keys; internal/pipeline injects the
// "session:<sid>:<key>" / "global:<key>" namespace prefix via Namespaced.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by backends that want to distinguish "absent" from
// a zero value at the Go API boundary; callers normally prefer the (Entry,
// bool) / nil-Entry return convention below, so this is mostly used
// internally by backends wrapping a third-party client.
var ErrNotFound = errors.New("store: key not found")

// Entry is one state entry: an opaque JSON-serializable value plus the
// bookkeeping timestamps spec §3 requires.
type Entry struct {
	Value     any
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the entry's TTL has passed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Store is the uniform contract every backend implements. All operations
// may fail with a backend-specific error; internal/pipeline wraps any
// non-nil error as a problem.StoreFailure.
type Store interface {
	// Get returns the entry for k, or (nil, false) if absent or expired.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores v under key, replacing any prior value. If ttl > 0 the
	// entry expires ttl after now; ttl <= 0 means no expiry, and does NOT
	// preserve any prior expiry (spec §4.C: "preserves no prior expiry").
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Increment treats the prior value as 0 if absent or non-numeric, adds
	// by, stores and returns the result, preserving any prior expiry.
	Increment(ctx context.Context, key string, by float64) (float64, error)

	// Patch merges value into the existing entry per the rules in
	// pkg/jsonvalue.Merge, preserving any prior expiry.
	Patch(ctx context.Context, key string, value any) error

	// Close flushes and releases backend resources. Calling Close on a
	// Namespaced wrapper is a no-op; the underlying store is shared.
	Close() error
}
