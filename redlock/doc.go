// Package redlock implements a quorum lock over independent lock stores.
//
// A Redlock holds a set of Stores that share no state with each other (for
// example several Redis nodes, NATS clusters or SQLite files). A lock is
// granted when a majority of stores accept the same random token within the
// lock's validity window:
//
//	quorum   = N/2 + 1
//	drift    = ttl*DriftFactor + 2ms
//	validity = ttl - elapsed - drift
//
// Acquisition fails when fewer than quorum stores voted for the token or the
// validity window was consumed by slow stores; partial votes are released
// before retrying. Store errors count as a missing vote and are reported to
// handlers registered with NotifyErrors.
//
// Redlock implements types.LockService and types.ErrorNotifier and is the
// lock service used by the leader elector.
//
// Example:
//
//	rl, err := redlock.New([]redlock.Store{
//	    redisstore.New("r1", c1),
//	    redisstore.New("r2", c2),
//	    redisstore.New("r3", c3),
//	})
//	lock, err := rl.Acquire(ctx, "jobs", 10*time.Second)
//	if errors.Is(err, types.ErrLockHeld) {
//	    // someone else owns it
//	}
package redlock
