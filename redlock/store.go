package redlock

import (
	"context"
	"time"
)

// Store is a single independent lock node participating in the quorum.
//
// Implementations must be safe for concurrent use. A false result with a nil
// error means the store answered and refused (key held by another token, or
// not held by this token); a non-nil error means the store could not answer.
type Store interface {
	// Name identifies the store in logs, metrics and error messages.
	Name() string

	// Acquire sets key to token with the given ttl if key is not currently held.
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Extend resets the ttl of key if it is still held by token.
	Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Release deletes key if it is held by token. Releasing a key that is not
	// held by token is not an error.
	Release(ctx context.Context, key, token string) error
}
