package redlock

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/torghul/redlock-leader/types"
)

// Default tuning values.
const (
	DefaultDriftFactor = 0.01
	DefaultRetryCount  = 0
	DefaultRetryDelay  = 200 * time.Millisecond
	DefaultRetryJitter = 200 * time.Millisecond

	// driftFloor is added to every drift computation to cover timer granularity.
	driftFloor = 2 * time.Millisecond
)

// Config holds the Redlock tuning knobs.
type Config struct {
	// DriftFactor is the fraction of the ttl reserved for clock drift between
	// stores. Must be in [0, 1).
	DriftFactor float64 `yaml:"driftFactor"`

	// RetryCount is the number of extra acquisition attempts after the first.
	RetryCount int `yaml:"retryCount"`

	// RetryDelay is the base pause between acquisition attempts.
	RetryDelay time.Duration `yaml:"retryDelay"`

	// RetryJitter is the upper bound of the random delay added to RetryDelay.
	RetryJitter time.Duration `yaml:"retryJitter"`
}

// DefaultConfig returns the default Redlock tuning: a single attempt with a
// 1% drift allowance.
func DefaultConfig() Config {
	return Config{
		DriftFactor: DefaultDriftFactor,
		RetryCount:  DefaultRetryCount,
		RetryDelay:  DefaultRetryDelay,
		RetryJitter: DefaultRetryJitter,
	}
}

// Validate checks the tuning values.
//
// Returns:
//   - error: Wrapped types.ErrInvalidConfig describing the first bad field, or nil
func (c Config) Validate() error {
	if c.DriftFactor < 0 || c.DriftFactor >= 1 {
		return fmt.Errorf("%w: redlock driftFactor must be in [0, 1), got %v", types.ErrInvalidConfig, c.DriftFactor)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("%w: redlock retryCount must be >= 0, got %d", types.ErrInvalidConfig, c.RetryCount)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: redlock retryDelay must be >= 0, got %v", types.ErrInvalidConfig, c.RetryDelay)
	}
	if c.RetryJitter < 0 {
		return fmt.Errorf("%w: redlock retryJitter must be >= 0, got %v", types.ErrInvalidConfig, c.RetryJitter)
	}

	return nil
}

type options struct {
	config  Config
	logger  types.Logger
	metrics types.LockMetrics
	clock   clockwork.Clock
}

// Option configures a Redlock.
type Option func(*options)

// WithConfig replaces all tuning values at once.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithDriftFactor sets the clock drift allowance as a fraction of the ttl.
func WithDriftFactor(f float64) Option {
	return func(o *options) {
		o.config.DriftFactor = f
	}
}

// WithRetryCount sets the number of extra acquisition attempts.
func WithRetryCount(n int) Option {
	return func(o *options) {
		o.config.RetryCount = n
	}
}

// WithRetryDelay sets the base pause between acquisition attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		o.config.RetryDelay = d
	}
}

// WithRetryJitter sets the upper bound of the random extra pause.
func WithRetryJitter(d time.Duration) Option {
	return func(o *options) {
		o.config.RetryJitter = d
	}
}

// WithLogger sets the logger. Nil values are ignored.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the collector receiving per-store operation outcomes
// ("store_acquire", "store_extend", "store_release"). Nil values are ignored.
func WithMetrics(metrics types.LockMetrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithClock sets the clock used for validity computation and retry pauses.
// Nil values are ignored.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
