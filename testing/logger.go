package testing

import (
	"testing"

	"github.com/torghul/redlock-leader/internal/logging"
	"github.com/torghul/redlock-leader/types"
)

// NewTestLogger creates a new logger instance that writes to the testing.T logger.
// This is useful for seeing log output during test runs.
func NewTestLogger(t testing.TB) types.Logger {
	return logging.NewTest(t)
}
