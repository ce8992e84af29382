package redlockleader

import "github.com/torghul/redlock-leader/types"

// Re-export types from the types package.
//
// Internal packages depend on types rather than on the root package, which
// avoids import cycles while still offering redlockleader.Event,
// redlockleader.Logger and friends to users.
type (
	LockService      = types.LockService
	Lock             = types.Lock
	ErrorNotifier    = types.ErrorNotifier
	LeadershipState  = types.LeadershipState
	Event            = types.Event
	EventKind        = types.EventKind
	EventHandler     = types.EventHandler
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Leadership states.
const (
	NotLeader = types.NotLeader
	Leader    = types.Leader
)

// Event kinds.
const (
	EventElected  = types.EventElected
	EventExtended = types.EventExtended
	EventRevoked  = types.EventRevoked
	EventError    = types.EventError
)
