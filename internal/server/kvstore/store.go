// Package kvstore is the shared key/value state behind the CSRF token
// registry and the rate limiter. Entries carry an absolute expiry; a zero
// expiry means the entry never expires.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrAbortUpdate can be returned from an UpdateFunc to leave the key as it is.
var ErrAbortUpdate = errors.New("kvstore: update aborted")

// UpdateFunc receives the current value of a key (found is false when the key
// is absent or expired) and returns the value to store with its expiry. A nil
// next deletes the key.
type UpdateFunc func(cur []byte, found bool) (next []byte, expiresAt time.Time, err error)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	Delete(ctx context.Context, keys ...string) (int, error)
	// Update runs fn as one atomic read-modify-write on key.
	Update(ctx context.Context, key string, fn UpdateFunc) error
	// Scan returns every live entry whose key starts with prefix.
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
	// Sweep drops entries expired at now and reports how many went.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
