package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/torghul/redlock-leader/types"
)

// DefaultNamespace is the metrics namespace used when none is given.
const DefaultNamespace = "redlock_leader"

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing
// a PrometheusCollector that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	isLeader       prometheus.Gauge
	transitions    *prometheus.CounterVec
	lockOps        *prometheus.CounterVec
	lockOpDuration *prometheus.HistogramVec
	clientErrors   prometheus.Counter
	eventsDropped  *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "redlock_leader" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.isLeader = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      "is_leader",
			Help:      "Whether this process currently holds leadership (1=leader,0=not leader).",
		})

		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "leadership_transitions_total",
			Help:      "Total leadership transitions by target state (leader,not_leader).",
		}, []string{"to"})

		p.clientErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "client_errors_total",
			Help:      "Total transport errors reported asynchronously by the lock service.",
		})

		p.eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "events_dropped_total",
			Help:      "Total events not delivered to slow channel subscribers by kind.",
		}, []string{"kind"})

		p.lockOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      "lock_operations_total",
			Help:      "Total lock operations by operation and result (success,failure).",
		}, []string{"op", "result"})

		p.lockOpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      "lock_operation_duration_seconds",
			Help:      "Latency of lock operations in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
		}, []string{"op"})

		p.reg.MustRegister(p.isLeader)
		p.reg.MustRegister(p.transitions)
		p.reg.MustRegister(p.clientErrors)
		p.reg.MustRegister(p.eventsDropped)
		p.reg.MustRegister(p.lockOps)
		p.reg.MustRegister(p.lockOpDuration)
	})
}

// ElectionMetrics implementation

// RecordLeadershipChange updates the leader gauge and counts the transition.
func (p *PrometheusCollector) RecordLeadershipChange(isLeader bool) {
	p.ensureRegistered()
	if isLeader {
		p.isLeader.Set(1)
		p.transitions.WithLabelValues("leader").Inc()

		return
	}
	p.isLeader.Set(0)
	p.transitions.WithLabelValues("not_leader").Inc()
}

// RecordClientError increments the client error counter.
func (p *PrometheusCollector) RecordClientError() {
	p.ensureRegistered()
	p.clientErrors.Inc()
}

// RecordEventDropped increments the dropped event counter for kind.
func (p *PrometheusCollector) RecordEventDropped(kind types.EventKind) {
	p.ensureRegistered()
	p.eventsDropped.WithLabelValues(kind.String()).Inc()
}

// LockMetrics implementation

// RecordLockOperation counts the operation by result and observes its latency.
func (p *PrometheusCollector) RecordLockOperation(operation string, success bool, duration float64) {
	p.ensureRegistered()
	p.lockOps.WithLabelValues(operation, resultLabel(success)).Inc()
	p.lockOpDuration.WithLabelValues(operation).Observe(duration)
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}
