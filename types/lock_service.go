package types

import (
	"context"
	"time"
)

// LockService is the distributed mutual-exclusion primitive the election runs on.
//
// Implementations are expected to be quorum based (see the redlock package), but
// the Elector treats them as a black box with these semantics:
//   - Acquire fails, frequently and unexceptionally, when the key is held elsewhere
//   - A returned Lock is valid for at most ttl unless extended
//   - Errors are returned, never panicked
//
// Implementations can use:
//   - redlock.Redlock over Redis, NATS KV, SQLite or in-memory stores (built-in)
//   - Any other TTL'd lock backend (etcd leases, Consul sessions, ...)
type LockService interface {
	// Acquire attempts to take the lock for key with the given time-to-live.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - key: Lock name shared by all contenders
	//   - ttl: Validity of the lock without renewal
	//
	// Returns:
	//   - Lock: Handle for the acquired lock (nil on error)
	//   - error: ErrLockHeld when another holder owns the key, or a transport error
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is an acquired, TTL-bounded lock.
//
// A Lock is owned by exactly one caller. After Extend fails or Release is
// called, the handle must be considered invalid.
type Lock interface {
	// Extend resets the lock's time-to-live.
	//
	// Returns:
	//   - error: ErrLockLost when the lock expired or was taken over, or a transport error
	Extend(ctx context.Context, ttl time.Duration) error

	// Release gives the lock up. Best effort: a lock that cannot be released
	// expires on its own once its ttl elapses.
	Release(ctx context.Context) error
}

// ErrorNotifier is implemented by lock services that report transport-level
// errors independently of any specific Acquire or Extend call.
//
// The Elector forwards these errors as EventError notifications. They never
// change leadership state on their own.
type ErrorNotifier interface {
	// NotifyErrors registers handler for asynchronous errors.
	//
	// Handlers may be invoked from any goroutine, including from inside an
	// in-flight Acquire or Extend call.
	//
	// Returns:
	//   - func(): Cancels the registration; safe to call more than once
	NotifyErrors(handler func(err error)) (cancel func())
}
