package redlockleader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	leadertest "github.com/torghul/redlock-leader/testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "redlock-leader", cfg.Key)
	require.Equal(t, 10*time.Second, cfg.TTL)
	require.Equal(t, 1*time.Second, cfg.RetryWait)
	require.Zero(t, cfg.RevokedRetryWait, "derived by SetDefaults")
	require.Zero(t, cfg.OperationTimeout, "derived by SetDefaults")
	require.Equal(t, 2*time.Second, cfg.ReleaseTimeout)

	SetDefaults(&cfg)
	require.Equal(t, 1*time.Second, cfg.RevokedRetryWait)
	require.Equal(t, 5*time.Second, cfg.OperationTimeout)
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_DerivedValuesFollowChanges(t *testing.T) {
	t.Run("shorter ttl", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.TTL = 4 * time.Second

		e, err := NewElector(&cfg, leadertest.NewFakeLockService())
		require.NoError(t, err)
		require.Equal(t, 2*time.Second, e.cfg.OperationTimeout)
	})

	t.Run("longer retry wait", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RetryWait = 5 * time.Second

		e, err := NewElector(&cfg, leadertest.NewFakeLockService())
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, e.cfg.RevokedRetryWait)
	})
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		want := DefaultConfig()
		SetDefaults(&want)
		require.Equal(t, want, cfg)
	})

	t.Run("derives dependent values", func(t *testing.T) {
		cfg := Config{TTL: 4 * time.Second, RetryWait: 300 * time.Millisecond}
		SetDefaults(&cfg)

		require.Equal(t, 300*time.Millisecond, cfg.RevokedRetryWait, "RevokedRetryWait follows RetryWait")
		require.Equal(t, 2*time.Second, cfg.OperationTimeout, "OperationTimeout follows TTL/2")
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			Key:              "jobs",
			TTL:              30 * time.Second,
			RetryWait:        2 * time.Second,
			RevokedRetryWait: 5 * time.Second,
			OperationTimeout: 3 * time.Second,
			ReleaseTimeout:   time.Second,
		}
		want := cfg
		SetDefaults(&cfg)

		require.Equal(t, want, cfg)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(*Config) {}},
		{name: "empty key", mutate: func(c *Config) { c.Key = "" }, wantErr: "Key"},
		{name: "zero ttl", mutate: func(c *Config) { c.TTL = 0 }, wantErr: "TTL"},
		{name: "negative retry wait", mutate: func(c *Config) { c.RetryWait = -time.Second }, wantErr: "RetryWait"},
		{name: "zero revoked retry wait", mutate: func(c *Config) { c.RevokedRetryWait = 0 }, wantErr: "RevokedRetryWait"},
		{name: "zero release timeout", mutate: func(c *Config) { c.ReleaseTimeout = 0 }, wantErr: "ReleaseTimeout"},
		{
			name:    "operation timeout beyond half ttl",
			mutate:  func(c *Config) { c.OperationTimeout = 6 * time.Second },
			wantErr: "OperationTimeout",
		},
		{
			name:   "operation timeout at half ttl",
			mutate: func(c *Config) { c.OperationTimeout = 5 * time.Second },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			SetDefaults(&cfg)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	t.Run("defaults produce no warnings", func(t *testing.T) {
		logger := &recordingLogger{}
		cfg := DefaultConfig()
		cfg.ValidateWithWarnings(logger)

		require.Empty(t, logger.warnings())
	})

	t.Run("short ttl and long retry wait", func(t *testing.T) {
		logger := &recordingLogger{}
		cfg := DefaultConfig()
		cfg.TTL = 500 * time.Millisecond
		cfg.RetryWait = time.Second
		cfg.ValidateWithWarnings(logger)

		require.Len(t, logger.warnings(), 2)
	})
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()

	require.NoError(t, cfg.Validate())
	require.Less(t, cfg.TTL, DefaultConfig().TTL)
}

// TestConfig_YAML demonstrates that time.Duration works directly with YAML unmarshaling
func TestConfig_YAML(t *testing.T) {
	yamlConfig := `
key: "jobs-leader"
ttl: 30s
retryWait: 2s
revokedRetryWait: 5s
operationTimeout: 10s
releaseTimeout: 1s
`

	var cfg Config
	err := yaml.Unmarshal([]byte(yamlConfig), &cfg)
	require.NoError(t, err)

	require.Equal(t, "jobs-leader", cfg.Key)
	require.Equal(t, 30*time.Second, cfg.TTL)
	require.Equal(t, 2*time.Second, cfg.RetryWait)
	require.Equal(t, 5*time.Second, cfg.RevokedRetryWait)
	require.Equal(t, 10*time.Second, cfg.OperationTimeout)
	require.Equal(t, 1*time.Second, cfg.ReleaseTimeout)
	require.NoError(t, cfg.Validate())
}

// TestConfig_DefaultsWithPartialYAML demonstrates using SetDefaults with partial config
func TestConfig_DefaultsWithPartialYAML(t *testing.T) {
	yamlConfig := `
key: "custom"
ttl: 6s
`

	var cfg Config
	err := yaml.Unmarshal([]byte(yamlConfig), &cfg)
	require.NoError(t, err)

	SetDefaults(&cfg)

	require.Equal(t, "custom", cfg.Key)
	require.Equal(t, 6*time.Second, cfg.TTL)
	require.Equal(t, 1*time.Second, cfg.RetryWait)
	require.Equal(t, 1*time.Second, cfg.RevokedRetryWait)
	require.Equal(t, 3*time.Second, cfg.OperationTimeout)
	require.Equal(t, 2*time.Second, cfg.ReleaseTimeout)
}
