// Package types provides core type definitions and interfaces for redlock-leader.
//
// This package contains shared types that are used across multiple packages in the
// module. By keeping these types in a separate package, we avoid import cycles
// between the root redlockleader package, the redlock lock service and its stores.
//
// Key types:
//   - LockService / Lock: The distributed mutual-exclusion contract the election consumes
//   - ErrorNotifier: Out-of-band transport error reporting
//   - LeadershipState: NotLeader or Leader
//   - Event / EventKind: Election lifecycle notifications
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
