// Package redlockleader elects a single active leader among equivalent
// process instances using a TTL-bounded distributed lock.
//
// Every instance runs an Elector over the same lock key. The instance that
// acquires the lock becomes leader and keeps the lease alive by renewing it
// every TTL/2; the others retry acquisition every RetryWait. When a renewal
// fails the leader steps down at once, so two instances can believe they
// lead only within the lock's clock drift allowance.
//
// # Quick Start
//
//	import (
//	    redlockleader "github.com/torghul/redlock-leader"
//	    "github.com/torghul/redlock-leader/redlock"
//	    "github.com/torghul/redlock-leader/redlock/redisstore"
//	)
//
//	rl, err := redlock.New([]redlock.Store{
//	    redisstore.New("r1", redis.NewClient(&redis.Options{Addr: "r1:6379"})),
//	    redisstore.New("r2", redis.NewClient(&redis.Options{Addr: "r2:6379"})),
//	    redisstore.New("r3", redis.NewClient(&redis.Options{Addr: "r3:6379"})),
//	})
//
//	cfg := redlockleader.DefaultConfig()
//	cfg.Key = "report-scheduler"
//	elector, err := redlockleader.NewElector(&cfg, rl)
//
//	elector.On(redlockleader.EventElected, func(redlockleader.Event) { scheduler.Resume() })
//	elector.On(redlockleader.EventRevoked, func(redlockleader.Event) { scheduler.Pause() })
//
//	if err := elector.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer elector.Stop(context.Background())
//
// # Events
//
//   - EventElected: this instance became leader (NotLeader → Leader only)
//   - EventExtended: the leadership lease was renewed
//   - EventRevoked: leadership was lost (Leader → NotLeader only; never on Stop)
//   - EventError: the lock service reported a transport error; state unchanged
//
// # Lock Services
//
// The Elector depends only on the LockService interface. The redlock
// subpackage implements it as a quorum over independent stores, with store
// implementations for Redis (redlock/redisstore), NATS JetStream KV
// (redlock/natsstore), SQLite (redlock/sqlitestore) and process memory
// (redlock/memstore).
//
// # Guarantees
//
// Leadership is best-effort and lease-based, not linearizable: this is not a
// consensus protocol. An instance that is paused longer than its remaining
// lease can still believe it leads until its next renewal fails.
package redlockleader
