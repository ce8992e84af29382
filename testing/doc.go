// Package testing provides test utilities for the redlock-leader module.
//
// It follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - StartIndependentNATS: Several unrelated NATS servers, one per quorum member
//   - CreateJetStreamKV: Convenience wrapper for lock bucket creation
//   - StartMiniRedis: In-process Redis server and client
//   - FakeLockService: Scriptable types.LockService for driving an Elector
//   - NewTestLogger: types.Logger writing to testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    leadertest "github.com/torghul/redlock-leader/testing"
//	)
//
//	func TestFailover(t *testing.T) {
//	    svc := leadertest.NewFakeLockService()
//	    svc.QueueAcquire(nil)              // first acquire succeeds
//	    svc.QueueExtend(types.ErrLockLost) // first renewal fails
//	}
package testing
