package redlockleader

import "github.com/torghul/redlock-leader/types"

// Sentinel errors returned by the Elector and lock services.
//
// These are re-exported from the types package so callers can match them
// with errors.Is without importing types.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrLockServiceRequired is returned when NewElector is given a nil lock service.
	ErrLockServiceRequired = types.ErrLockServiceRequired

	// ErrAlreadyStarted is returned when Start is called on a running elector.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrLockHeld is returned by a lock service when another owner holds the key.
	ErrLockHeld = types.ErrLockHeld

	// ErrLockLost is returned by Lock.Extend when the lease could not be renewed.
	ErrLockLost = types.ErrLockLost

	// ErrConnectivity marks transport failures reported by lock stores.
	ErrConnectivity = types.ErrConnectivity
)
