// Package cache provides the key-value store the read path consults before
// the search backend. Values are opaque strings; every entry carries its own
// TTL. Store failures are recoverable by contract: readers treat them as a
// miss, writers treat them as a best-effort no-op.
package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the entry lifetime used when the caller does not supply one.
const DefaultTTL = 5 * time.Minute

// ErrUnavailable marks a cache failure the caller must absorb rather than
// surface: a failed Get degrades to a miss, a failed Set is logged and
// dropped.
var ErrUnavailable = errors.New("cache: unavailable")

// Store is the minimal contract the cache-aside layer needs. A zero ttl on
// Set selects DefaultTTL. A new Set for an existing key fully overwrites the
// previous value and TTL.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close(ctx context.Context) error
}

type ttlStore struct {
	Store
	ttl time.Duration
}

// WithTTL wraps a store so zero-TTL writes use the configured lifetime instead
// of DefaultTTL. Explicit per-write TTLs pass through untouched.
func WithTTL(store Store, ttl time.Duration) Store {
	if ttl <= 0 {
		return store
	}
	return &ttlStore{Store: store, ttl: ttl}
}

func (s *ttlStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.Store.Set(ctx, key, value, ttl)
}
