package redlockleader

import (
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/torghul/redlock-leader/internal/metrics"
)

// Option configures an Elector with optional dependencies.
type Option func(*electorOptions)

// electorOptions holds optional Elector configuration.
type electorOptions struct {
	logger  Logger
	metrics MetricsCollector
	clock   clockwork.Clock
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewElector
//
// Example:
//
//	logger := logging.NewSlog(slog.Default())
//	elector, err := redlockleader.NewElector(&cfg, rl, redlockleader.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *electorOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewElector
//
// Example:
//
//	m := redlockleader.NewPrometheusMetrics(prometheus.DefaultRegisterer, "")
//	elector, err := redlockleader.NewElector(&cfg, rl, redlockleader.WithMetrics(m))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *electorOptions) {
		o.metrics = metrics
	}
}

// WithClock sets the clock driving the renewal and retry timers.
//
// Tests pass a clockwork.FakeClock to step through a leadership term
// deterministically.
//
// Parameters:
//   - clock: Clock implementation
//
// Returns:
//   - Option: Functional option for NewElector
func WithClock(clock clockwork.Clock) Option {
	return func(o *electorOptions) {
		o.clock = clock
	}
}

// NewPrometheusMetrics creates a Prometheus-backed MetricsCollector.
//
// Collectors are registered lazily on first use.
//
// Parameters:
//   - reg: Registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metric name prefix ("redlock_leader" if empty)
//
// Returns:
//   - MetricsCollector: Collector for WithMetrics and redlock.WithMetrics
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
