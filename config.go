package redlockleader

import (
	"fmt"
	"time"
)

// ============================================================================
// Timing Model
// ============================================================================
//
// A leadership term is a chain of single-shot timer steps:
//
//	acquire ──ok──▶ elected ──TTL/2──▶ extend ──ok──▶ extended ──TTL/2──▶ extend ...
//	   │                                  │
//	   └─fail─▶ RetryWait ─▶ acquire      └─fail─▶ revoked ─▶ RevokedRetryWait ─▶ acquire
//
// Renewing at TTL/2 leaves half the lease as headroom for a slow or failed
// renewal. Each lock service call is bounded by OperationTimeout, which must
// therefore stay below TTL/2 for a renewal to finish before the lease ends.
//
// Configuration Constraints:
//   - TTL > 0, RetryWait > 0, RevokedRetryWait > 0
//   - OperationTimeout <= TTL/2
//
// ============================================================================

// Config is the configuration for the Elector.
//
// All duration fields accept standard Go duration strings like "10s", "500ms".
type Config struct {
	// Key is the lock key contended for by every instance of the cluster.
	// Instances electing independent leaders must use different keys.
	Key string `yaml:"key"`

	// TTL is the lease duration of the leadership lock.
	// Renewal is attempted every TTL/2.
	// Recommended: 10 seconds.
	TTL time.Duration `yaml:"ttl"`

	// RetryWait is the pause between failed acquisition attempts.
	// Recommended: 1 second.
	RetryWait time.Duration `yaml:"retryWait"`

	// RevokedRetryWait is the pause before re-acquiring after a failed renewal.
	//
	// Default: 0 (uses RetryWait)
	RevokedRetryWait time.Duration `yaml:"revokedRetryWait"`

	// OperationTimeout bounds a single acquire or extend call.
	//
	// Default: 0 (uses TTL/2)
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ReleaseTimeout bounds the best-effort release in Stop when the caller's
	// context carries no deadline.
	// Recommended: 2 seconds.
	ReleaseTimeout time.Duration `yaml:"releaseTimeout"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// RevokedRetryWait and OperationTimeout are left zero so that they follow
// RetryWait and TTL when SetDefaults runs (NewElector always runs it).
// Callers may change TTL or RetryWait on the result without touching them.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Key:            "redlock-leader",
		TTL:            10 * time.Second,
		RetryWait:      1 * time.Second,
		ReleaseTimeout: 2 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Derived values follow the fields they depend on: RevokedRetryWait defaults
// to RetryWait and OperationTimeout to TTL/2.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Key == "" {
		cfg.Key = defaults.Key
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.RetryWait == 0 {
		cfg.RetryWait = defaults.RetryWait
	}
	if cfg.RevokedRetryWait == 0 {
		cfg.RevokedRetryWait = cfg.RetryWait
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = cfg.TTL / 2
	}
	if cfg.ReleaseTimeout == 0 {
		cfg.ReleaseTimeout = defaults.ReleaseTimeout
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - Key is not empty
//   - TTL, RetryWait, RevokedRetryWait, OperationTimeout, ReleaseTimeout > 0
//   - OperationTimeout <= TTL/2 (a renewal must finish before the lease ends)
//
// Returns:
//   - error: Wrapped ErrInvalidConfig with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Key == "" {
		return fmt.Errorf("%w: Key must not be empty", ErrInvalidConfig)
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"TTL", cfg.TTL},
		{"RetryWait", cfg.RetryWait},
		{"RevokedRetryWait", cfg.RevokedRetryWait},
		{"OperationTimeout", cfg.OperationTimeout},
		{"ReleaseTimeout", cfg.ReleaseTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrInvalidConfig, p.name, p.value)
		}
	}

	if cfg.OperationTimeout > cfg.TTL/2 {
		return fmt.Errorf(
			"%w: OperationTimeout (%v) must be <= TTL/2 (%v) so a renewal completes before the lease expires",
			ErrInvalidConfig, cfg.OperationTimeout, cfg.TTL/2,
		)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but non-recommended values.
//
// This is called after Validate() in NewElector() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.TTL < time.Second {
		logger.Warn(
			"TTL is very short, renewals may not keep up with network latency",
			"ttl", cfg.TTL,
			"recommended", "1s or higher",
		)
	}

	if cfg.RetryWait > cfg.TTL {
		logger.Warn(
			"RetryWait exceeds TTL, failover after a leader crash will be slow",
			"retryWait", cfg.RetryWait,
			"ttl", cfg.TTL,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := redlockleader.TestConfig()
//	cfg.Key = "test-leader"
//	elector, err := redlockleader.NewElector(&cfg, service)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.TTL = 1 * time.Second
	cfg.RetryWait = 100 * time.Millisecond
	cfg.RevokedRetryWait = 100 * time.Millisecond
	cfg.OperationTimeout = 500 * time.Millisecond
	cfg.ReleaseTimeout = 500 * time.Millisecond

	return cfg
}
