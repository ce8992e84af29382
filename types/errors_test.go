package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("errors.Is works correctly", func(t *testing.T) {
		require.True(t, errors.Is(ErrLockHeld, ErrLockHeld))
		require.False(t, errors.Is(ErrLockHeld, ErrLockLost))

		// Wrapped errors maintain identity
		wrapped := fmt.Errorf("store redis-0: %w", ErrLockLost)
		require.ErrorIs(t, wrapped, ErrLockLost)

		joined := errors.Join(ErrQuorumNotReached, errors.New("additional context"))
		require.ErrorIs(t, joined, ErrQuorumNotReached)
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			// Elector errors
			ErrInvalidConfig,
			ErrLockServiceRequired,
			ErrAlreadyStarted,
			// Lock errors
			ErrLockHeld,
			ErrLockLost,
			ErrNotHeld,
			ErrQuorumNotReached,
			ErrInvalidTTL,
			ErrNoStores,
			ErrConnectivity,
			ErrStoreUnavailable,
		}

		for i, err1 := range allErrors {
			for j, err2 := range allErrors {
				if i != j {
					require.False(t, errors.Is(err1, err2), "%v should not match %v", err1, err2)
				}
			}
		}
	})
}

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrConnectivity, true},
		{"wrapped sentinel", fmt.Errorf("nats-0: %w", ErrConnectivity), true},
		{"unavailable store", fmt.Errorf("mem-1: %w", ErrStoreUnavailable), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"), true},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), true},
		{"contention", ErrLockHeld, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}
