package types

// Logger defines methods for structured logging.
//
// Compatible with zap.SugaredLogger, the slog adapter in internal/logging and
// other structured loggers. All methods accept alternating key-value pairs,
// e.g. logger.Info("elected as leader", "key", key, "ttl", ttl).
type Logger interface {
	// Debug logs a message at DebugLevel.
	// Contention retries and discarded in-flight results are logged here.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at InfoLevel.
	// Leadership transitions and lifecycle (start/stop) are logged here.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at FatalLevel and calls os.Exit(1).
	//
	// The library never calls Fatal itself; it is part of the interface so
	// daemons can share one logger value.
	Fatal(msg string, keysAndValues ...any)
}
