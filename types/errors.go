package types

import (
	"errors"
	"strings"
)

// Sentinel errors for redlock-leader.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Elector errors - Public API errors returned by the election engine.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrLockServiceRequired is returned when no lock service is supplied.
	ErrLockServiceRequired = errors.New("lock service is required")

	// ErrAlreadyStarted is returned when Start is called on a running elector.
	ErrAlreadyStarted = errors.New("elector already started")
)

// Lock errors - Outcomes reported by lock services and stores.
var (
	// ErrLockHeld is returned by Acquire when another holder owns the key.
	// Contention is the normal, frequent outcome for every non-leader.
	ErrLockHeld = errors.New("lock is held by another owner")

	// ErrLockLost is returned by Extend when the lock expired or was taken over.
	ErrLockLost = errors.New("lock was lost")

	// ErrNotHeld is returned when releasing a lock the caller does not own.
	ErrNotHeld = errors.New("lock is not held by caller")

	// ErrQuorumNotReached is returned when fewer than a majority of stores agreed.
	ErrQuorumNotReached = errors.New("quorum not reached")

	// ErrInvalidTTL is returned for non-positive lock durations.
	ErrInvalidTTL = errors.New("invalid lock ttl")

	// ErrNoStores is returned when a quorum lock is built without stores.
	ErrNoStores = errors.New("at least one lock store is required")

	// ErrConnectivity indicates a lock store could not be reached.
	// Used to separate transport failures from contention.
	ErrConnectivity = errors.New("connectivity issue")

	// ErrStoreUnavailable is returned by stores that are deliberately failing.
	ErrStoreUnavailable = errors.New("lock store unavailable")
)

// IsConnectivityError reports whether err looks like a transport failure.
//
// Matches wrapped ErrConnectivity / ErrStoreUnavailable and the common
// network error strings returned by clients that do not wrap their errors.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates a connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) || errors.Is(err, ErrStoreUnavailable) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "broken pipe")
}
