package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ElectionMetrics
	LockMetrics
}

// ElectionMetrics defines metrics for the election engine.
type ElectionMetrics interface {
	// RecordLeadershipChange records a leadership transition.
	//
	// Parameters:
	//   - isLeader: true on NotLeader → Leader, false on Leader → NotLeader
	RecordLeadershipChange(isLeader bool)

	// RecordClientError records a transport error reported by the lock service.
	RecordClientError()

	// RecordEventDropped records an event not delivered to a slow channel subscriber.
	//
	// Parameters:
	//   - kind: Kind of the dropped event
	RecordEventDropped(kind EventKind)
}

// LockMetrics defines metrics for lock service operations.
type LockMetrics interface {
	// RecordLockOperation records the outcome and latency of a lock operation.
	//
	// Parameters:
	//   - operation: Operation type ("acquire", "extend", "release", or store-level "store_acquire", ...)
	//   - success: true if the operation succeeded
	//   - duration: Time taken in seconds
	RecordLockOperation(operation string, success bool, duration float64)
}
