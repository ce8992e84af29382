package types

import "time"

// EventKind enumerates election lifecycle notifications.
type EventKind int

const (
	// EventElected is emitted once on every NotLeader → Leader edge.
	EventElected EventKind = iota + 1

	// EventExtended is emitted on every successful renewal.
	EventExtended

	// EventRevoked is emitted once on every Leader → NotLeader edge caused by
	// a failed renewal or re-acquisition. Stop never emits it.
	EventRevoked

	// EventError carries a transport error reported by the lock service.
	EventError
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventElected:
		return "elected"
	case EventExtended:
		return "extended"
	case EventRevoked:
		return "revoked"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single election lifecycle notification.
type Event struct {
	// Kind identifies what happened.
	Kind EventKind

	// Err is set for EventError only.
	Err error

	// Time is when the elector observed the occurrence.
	Time time.Time
}

// EventHandler receives events synchronously, in registration order.
//
// Handlers run on the election loop goroutine and must return quickly.
// Calling Elector.Stop from inside a handler deadlocks; use a goroutine.
type EventHandler func(Event)
