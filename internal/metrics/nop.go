package metrics

import "github.com/torghul/redlock-leader/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	metrics := metrics.NewNop()
//	elector, err := leader.NewElector(&cfg, service, leader.WithMetrics(metrics))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ElectionMetrics implementation

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* isLeader */ bool) {
	// No-op
}

// RecordClientError discards the client error metric.
func (n *NopMetrics) RecordClientError() {
	// No-op
}

// RecordEventDropped discards the dropped event metric.
func (n *NopMetrics) RecordEventDropped(_ /* kind */ types.EventKind) {
	// No-op
}

// LockMetrics implementation

// RecordLockOperation discards the lock operation metric.
func (n *NopMetrics) RecordLockOperation(_ /* operation */ string, _ /* success */ bool, _ /* duration */ float64) {
	// No-op
}
