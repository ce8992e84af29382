// Package natsutil classifies NATS client errors.
package natsutil

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/torghul/redlock-leader/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, missing servers, disconnections and closed
// connections, in addition to the generic cases recognized by
// types.IsConnectivityError.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return types.IsConnectivityError(err) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrNoStreamResponse)
}

// WrapError annotates err with the failing operation and, when the cause is a
// connectivity problem, also with types.ErrConnectivity so callers can test
// for it without importing NATS packages.
//
// Parameters:
//   - op: Operation name used as the message prefix
//   - err: Error to wrap (nil passes through)
//
// Returns:
//   - error: Wrapped error, or nil
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsConnectivityError(err) && !errors.Is(err, types.ErrConnectivity) {
		return fmt.Errorf("%s: %w: %w", op, types.ErrConnectivity, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
