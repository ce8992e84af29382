package redlock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/torghul/redlock-leader/internal/logging"
	"github.com/torghul/redlock-leader/internal/metrics"
	"github.com/torghul/redlock-leader/types"
)

const (
	opAcquire = "store_acquire"
	opExtend  = "store_extend"
	opRelease = "store_release"
)

// Redlock is a quorum lock over independent stores.
type Redlock struct {
	stores []Store
	quorum int
	cfg    Config

	logger  types.Logger
	metrics types.LockMetrics
	clock   clockwork.Clock

	errHandlers *xsync.Map[uint64, func(error)]
	nextID      atomic.Uint64
}

// Compile-time assertions.
var (
	_ types.LockService   = (*Redlock)(nil)
	_ types.ErrorNotifier = (*Redlock)(nil)
)

// New creates a Redlock over stores.
//
// Parameters:
//   - stores: Independent lock stores; quorum is len(stores)/2+1
//   - opts: Optional tuning, logger, metrics and clock
//
// Returns:
//   - *Redlock: Ready-to-use quorum lock
//   - error: types.ErrNoStores, or a wrapped types.ErrInvalidConfig
func New(stores []Store, opts ...Option) (*Redlock, error) {
	if len(stores) == 0 {
		return nil, types.ErrNoStores
	}
	if slices.Contains(stores, nil) {
		return nil, fmt.Errorf("%w: nil store", types.ErrInvalidConfig)
	}

	o := options{
		config:  DefaultConfig(),
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	return &Redlock{
		stores:      slices.Clone(stores),
		quorum:      len(stores)/2 + 1,
		cfg:         o.config,
		logger:      o.logger,
		metrics:     o.metrics,
		clock:       o.clock,
		errHandlers: xsync.NewMap[uint64, func(error)](),
	}, nil
}

// Quorum returns the number of stores that must agree on a lock.
func (r *Redlock) Quorum() int {
	return r.quorum
}

// Stores returns the number of participating stores.
func (r *Redlock) Stores() int {
	return len(r.stores)
}

// Acquire obtains key for ttl on a quorum of stores.
//
// The first attempt is followed by up to RetryCount retries, each after
// RetryDelay plus a random jitter below RetryJitter. Votes from a failed
// attempt are released before the next one.
//
// Parameters:
//   - ctx: Context bounding every store call and retry pause
//   - key: Lock key
//   - ttl: Lock duration; must be positive
//
// Returns:
//   - types.Lock: *Lock handle on success
//   - error: types.ErrInvalidTTL, types.ErrLockHeld when attempts are
//     exhausted, or the context error
func (r *Redlock) Acquire(ctx context.Context, key string, ttl time.Duration) (types.Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidTTL, ttl)
	}

	token := uuid.NewString()

	for attempt := 0; attempt <= r.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			if err := r.pause(ctx); err != nil {
				return nil, err
			}
		}

		start := r.clock.Now()
		votes := r.vote(ctx, opAcquire, key, func(ctx context.Context, s Store) (bool, error) {
			return s.Acquire(ctx, key, token, ttl)
		})

		validity := r.validity(start, ttl)
		if votes >= r.quorum && validity > 0 {
			r.logger.Debug("redlock acquired", "key", key, "votes", votes, "validity", validity)

			return &Lock{
				r:          r,
				key:        key,
				token:      token,
				expiration: start.Add(validity),
			}, nil
		}

		r.logger.Debug("redlock acquire attempt failed",
			"key", key, "attempt", attempt+1, "votes", votes, "quorum", r.quorum, "validity", validity)
		_ = r.releaseAll(ctx, key, token)
	}

	return nil, fmt.Errorf("%w: key %q after %d attempt(s)", types.ErrLockHeld, key, r.cfg.RetryCount+1)
}

// NotifyErrors registers handler for store errors encountered by any
// operation. Errors are wrapped with the store name and operation.
//
// Returns:
//   - func(): Removes the handler; safe to call more than once
func (r *Redlock) NotifyErrors(handler func(err error)) func() {
	id := r.nextID.Add(1)
	r.errHandlers.Store(id, handler)

	return func() {
		r.errHandlers.Delete(id)
	}
}

// validity is the remaining safe window of a lock whose vote started at start.
func (r *Redlock) validity(start time.Time, ttl time.Duration) time.Duration {
	drift := time.Duration(float64(ttl)*r.cfg.DriftFactor) + driftFloor

	return ttl - r.clock.Since(start) - drift
}

// vote runs call on every store concurrently and counts the stores that
// answered true.
func (r *Redlock) vote(ctx context.Context, op, key string, call func(context.Context, Store) (bool, error)) int {
	var (
		wg    sync.WaitGroup
		votes atomic.Int32
	)

	for _, s := range r.stores {
		wg.Go(func() {
			start := r.clock.Now()
			ok, err := call(ctx, s)
			r.metrics.RecordLockOperation(op, err == nil && ok, r.clock.Since(start).Seconds())

			if err != nil {
				r.reportError(s, op, key, err)
				return
			}
			if ok {
				votes.Add(1)
			}
		})
	}
	wg.Wait()

	return int(votes.Load())
}

// releaseAll releases key on every store and joins the store errors.
func (r *Redlock) releaseAll(ctx context.Context, key, token string) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, s := range r.stores {
		wg.Go(func() {
			start := r.clock.Now()
			err := s.Release(ctx, key, token)
			r.metrics.RecordLockOperation(opRelease, err == nil, r.clock.Since(start).Seconds())

			if err != nil {
				r.reportError(s, opRelease, key, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("store %s: %w", s.Name(), err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	return errors.Join(errs...)
}

func (r *Redlock) reportError(s Store, op, key string, err error) {
	wrapped := fmt.Errorf("redlock store %s %s %q: %w", s.Name(), op, key, err)
	r.logger.Debug("redlock store error", "store", s.Name(), "op", op, "key", key, "error", err)

	r.errHandlers.Range(func(_ uint64, handler func(error)) bool {
		handler(wrapped)
		return true
	})
}

// pause waits RetryDelay plus jitter, or until ctx is done.
func (r *Redlock) pause(ctx context.Context) error {
	delay := r.cfg.RetryDelay
	if r.cfg.RetryJitter > 0 {
		delay += time.Duration(rand.Int64N(int64(r.cfg.RetryJitter))) //nolint:gosec // jitter does not need a CSPRNG
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(delay):
		return nil
	}
}
