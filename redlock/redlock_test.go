package redlock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/torghul/redlock-leader/internal/logging"
	"github.com/torghul/redlock-leader/redlock"
	"github.com/torghul/redlock-leader/redlock/memstore"
	"github.com/torghul/redlock-leader/types"
)

type opRecorder struct {
	mu  sync.Mutex
	ops map[string]int
}

func (r *opRecorder) RecordLockOperation(operation string, _ bool, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[operation]++
}

func (r *opRecorder) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ops[op]
}

func newCluster(t *testing.T, n int, opts ...redlock.Option) (*redlock.Redlock, []*memstore.Store, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	mems := make([]*memstore.Store, n)
	stores := make([]redlock.Store, n)
	for i := range n {
		mems[i] = memstore.New(string(rune('a'+i)), clock)
		stores[i] = mems[i]
	}

	opts = append([]redlock.Option{redlock.WithClock(clock), redlock.WithLogger(logging.NewTest(t))}, opts...)
	rl, err := redlock.New(stores, opts...)
	require.NoError(t, err)

	return rl, mems, clock
}

func TestNew(t *testing.T) {
	t.Run("requires stores", func(t *testing.T) {
		_, err := redlock.New(nil)
		require.ErrorIs(t, err, types.ErrNoStores)
	})

	t.Run("rejects nil store", func(t *testing.T) {
		_, err := redlock.New([]redlock.Store{nil})
		require.ErrorIs(t, err, types.ErrInvalidConfig)
	})

	t.Run("rejects bad tuning", func(t *testing.T) {
		s := memstore.New("a", nil)
		_, err := redlock.New([]redlock.Store{s}, redlock.WithDriftFactor(1.5))
		require.ErrorIs(t, err, types.ErrInvalidConfig)

		_, err = redlock.New([]redlock.Store{s}, redlock.WithRetryCount(-1))
		require.ErrorIs(t, err, types.ErrInvalidConfig)
	})

	t.Run("quorum is a strict majority", func(t *testing.T) {
		for n, want := range map[int]int{1: 1, 2: 2, 3: 2, 4: 3, 5: 3} {
			rl, _, _ := newCluster(t, n)
			require.Equal(t, want, rl.Quorum(), "n=%d", n)
			require.Equal(t, n, rl.Stores())
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, redlock.DefaultConfig().Validate())

	cfg := redlock.DefaultConfig()
	cfg.RetryDelay = -time.Second
	require.ErrorIs(t, cfg.Validate(), types.ErrInvalidConfig)

	cfg = redlock.DefaultConfig()
	cfg.RetryJitter = -time.Second
	require.ErrorIs(t, cfg.Validate(), types.ErrInvalidConfig)
}

func TestRedlock_Acquire(t *testing.T) {
	ctx := t.Context()

	t.Run("grants lock on every healthy store", func(t *testing.T) {
		rl, mems, clock := newCluster(t, 3)

		lock, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)

		rlock, ok := lock.(*redlock.Lock)
		require.True(t, ok)
		require.Equal(t, "jobs", rlock.Key())
		require.NotEmpty(t, rlock.Token())
		// 1s - 0 elapsed - (10ms drift + 2ms)
		require.Equal(t, clock.Now().Add(988*time.Millisecond), rlock.Expiration())

		for _, m := range mems {
			holder, held := m.Holder("jobs")
			require.True(t, held)
			require.Equal(t, rlock.Token(), holder)
		}
	})

	t.Run("contender gets ErrLockHeld", func(t *testing.T) {
		rl, _, _ := newCluster(t, 3)

		_, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)

		_, err = rl.Acquire(ctx, "jobs", time.Second)
		require.ErrorIs(t, err, types.ErrLockHeld)
	})

	t.Run("tolerates minority failure", func(t *testing.T) {
		rl, mems, _ := newCluster(t, 3)
		mems[2].Fail()

		var reported []error
		var mu sync.Mutex
		cancel := rl.NotifyErrors(func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		})
		defer cancel()

		_, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, reported, 1)
		require.ErrorIs(t, reported[0], types.ErrStoreUnavailable)
		require.Contains(t, reported[0].Error(), "store c ")
	})

	t.Run("majority failure releases partial votes", func(t *testing.T) {
		rl, mems, _ := newCluster(t, 3)
		mems[1].Fail()
		mems[2].Fail()

		_, err := rl.Acquire(ctx, "jobs", time.Second)
		require.ErrorIs(t, err, types.ErrLockHeld)

		_, held := mems[0].Holder("jobs")
		require.False(t, held, "vote on the healthy store must be released")
	})

	t.Run("no validity left", func(t *testing.T) {
		rl, mems, _ := newCluster(t, 1, redlock.WithDriftFactor(0))

		_, err := rl.Acquire(ctx, "jobs", 2*time.Millisecond)
		require.ErrorIs(t, err, types.ErrLockHeld)

		_, held := mems[0].Holder("jobs")
		require.False(t, held)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		rl, _, _ := newCluster(t, 1)

		_, err := rl.Acquire(ctx, "jobs", 0)
		require.ErrorIs(t, err, types.ErrInvalidTTL)
	})
}

func TestRedlock_AcquireRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	rl, _, clock := newCluster(t, 3,
		redlock.WithRetryCount(1),
		redlock.WithRetryDelay(500*time.Millisecond),
		redlock.WithRetryJitter(0),
	)

	first, err := rl.Acquire(ctx, "jobs", time.Minute)
	require.NoError(t, err)

	type result struct {
		lock types.Lock
		err  error
	}
	done := make(chan result, 1)
	go func() {
		l, err := rl.Acquire(ctx, "jobs", time.Minute)
		done <- result{lock: l, err: err}
	}()

	// The contender fails its first attempt and waits on the retry pause.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.NoError(t, first.Release(ctx))
	clock.Advance(500 * time.Millisecond)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.NotNil(t, res.lock)
	case <-ctx.Done():
		t.Fatal("retrying acquire did not complete")
	}
}

func TestRedlock_AcquireRetryCanceled(t *testing.T) {
	rl, _, clock := newCluster(t, 1, redlock.WithRetryCount(3))

	_, err := rl.Acquire(t.Context(), "jobs", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := rl.Acquire(ctx, "jobs", time.Minute)
		done <- err
	}()

	require.NoError(t, clock.BlockUntilContext(t.Context(), 1))
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
}

func TestLock_Extend(t *testing.T) {
	ctx := t.Context()

	t.Run("extends on quorum", func(t *testing.T) {
		rl, mems, clock := newCluster(t, 3)

		lock, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)

		clock.Advance(500 * time.Millisecond)
		mems[0].Fail()

		require.NoError(t, lock.Extend(ctx, time.Second))
		require.Equal(t, clock.Now().Add(988*time.Millisecond), lock.(*redlock.Lock).Expiration())
	})

	t.Run("loses lock without quorum", func(t *testing.T) {
		rl, mems, _ := newCluster(t, 3)

		lock, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)

		mems[0].Fail()
		mems[1].Fail()

		err = lock.Extend(ctx, time.Second)
		require.ErrorIs(t, err, types.ErrLockLost)

		_, held := mems[2].Holder("jobs")
		require.False(t, held, "partial extension must be released")

		err = lock.Extend(ctx, time.Second)
		require.ErrorIs(t, err, types.ErrNotHeld)
	})

	t.Run("loses expired lock", func(t *testing.T) {
		rl, _, clock := newCluster(t, 3)

		lock, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)

		clock.Advance(2 * time.Second)
		require.ErrorIs(t, lock.Extend(ctx, time.Second), types.ErrLockLost)
	})

	t.Run("invalid ttl", func(t *testing.T) {
		rl, _, _ := newCluster(t, 1)

		lock, err := rl.Acquire(ctx, "jobs", time.Second)
		require.NoError(t, err)
		require.ErrorIs(t, lock.Extend(ctx, -time.Second), types.ErrInvalidTTL)
	})
}

func TestLock_Release(t *testing.T) {
	ctx := t.Context()

	t.Run("frees key on every store", func(t *testing.T) {
		rl, mems, _ := newCluster(t, 3)

		lock, err := rl.Acquire(ctx, "jobs", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
		require.NoError(t, lock.Release(ctx), "second release is a no-op")

		for _, m := range mems {
			_, held := m.Holder("jobs")
			require.False(t, held)
		}

		_, err = rl.Acquire(ctx, "jobs", time.Minute)
		require.NoError(t, err)
	})

	t.Run("joins store errors", func(t *testing.T) {
		rl, mems, _ := newCluster(t, 3)

		lock, err := rl.Acquire(ctx, "jobs", time.Minute)
		require.NoError(t, err)

		mems[0].Fail()
		err = lock.Release(ctx)
		require.Error(t, err)
		require.ErrorIs(t, err, types.ErrStoreUnavailable)

		require.ErrorIs(t, lock.Extend(ctx, time.Minute), types.ErrNotHeld)
	})
}

func TestRedlock_NotifyErrorsCancel(t *testing.T) {
	rl, mems, _ := newCluster(t, 3)
	mems[0].Fail()

	calls := 0
	cancel := rl.NotifyErrors(func(error) { calls++ })
	cancel()
	cancel()

	_, err := rl.Acquire(t.Context(), "jobs", time.Second)
	require.NoError(t, err)
	require.Zero(t, calls)
}

func TestRedlock_RecordsStoreOperations(t *testing.T) {
	rec := &opRecorder{}
	rl, _, _ := newCluster(t, 3, redlock.WithMetrics(rec))

	lock, err := rl.Acquire(t.Context(), "jobs", time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Extend(t.Context(), time.Second))
	require.NoError(t, lock.Release(t.Context()))

	require.Equal(t, 3, rec.count("store_acquire"))
	require.Equal(t, 3, rec.count("store_extend"))
	require.Equal(t, 3, rec.count("store_release"))
}

func TestRedlock_ErrorsAreWrapped(t *testing.T) {
	rl, mems, _ := newCluster(t, 1)
	mems[0].Fail()

	var got error
	defer rl.NotifyErrors(func(err error) { got = err })()

	_, err := rl.Acquire(t.Context(), "jobs", time.Second)
	require.ErrorIs(t, err, types.ErrLockHeld)
	require.True(t, errors.Is(got, types.ErrStoreUnavailable))
}
