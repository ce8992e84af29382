package redlockleader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/torghul/redlock-leader/internal/events"
	"github.com/torghul/redlock-leader/internal/logging"
	"github.com/torghul/redlock-leader/internal/metrics"
)

// Lock operation names reported through MetricsCollector.RecordLockOperation.
const (
	opAcquire = "acquire"
	opExtend  = "extend"
	opRelease = "release"
)

// Elector runs a lease-based leader election for one lock key.
//
// A leadership term is a chain of timer steps: a successful acquisition
// schedules a renewal after TTL/2, each successful renewal schedules the
// next, and any failure drops leadership and schedules a new acquisition.
// At most one timer is pending at any time.
//
// Every Start opens a new epoch. Steps and events carry the epoch they were
// created in and are discarded once Stop (or a later Start) has moved past
// it. The epoch is re-checked under the state mutex before every handler
// call and subscriber send, so delivery of a stopped run's events ends at
// the first check after Stop closes the epoch.
//
// Thread Safety:
//   - All methods are safe for concurrent use
//   - No lock is held while handlers run; a handler may call Stop (or Start)
//     directly
type Elector struct {
	cfg     Config
	service LockService
	clock   clockwork.Clock
	logger  Logger
	metrics MetricsCollector
	events  *events.Broadcaster

	leader atomic.Bool

	mu        sync.Mutex
	running   bool
	epoch     uint64
	lock      Lock // non-nil iff Leader
	timer     clockwork.Timer
	unsubErrs func()
}

// NewElector creates a new leader elector.
//
// Parameters:
//   - cfg: Configuration (copied; missing values get defaults). Nil uses DefaultConfig
//   - service: Lock service implementing the mutual-exclusion primitive
//   - opts: Optional logger, metrics collector and clock
//
// Returns:
//   - *Elector: Elector in the NotLeader state, not yet started
//   - error: ErrLockServiceRequired, or a wrapped ErrInvalidConfig
//
// Example:
//
//	rl, _ := redlock.New(stores)
//	cfg := redlockleader.DefaultConfig()
//	cfg.Key = "billing-scheduler"
//	elector, err := redlockleader.NewElector(&cfg, rl)
//	if err != nil {
//	    return err
//	}
//	elector.On(redlockleader.EventElected, func(redlockleader.Event) { startJobs() })
//	elector.On(redlockleader.EventRevoked, func(redlockleader.Event) { stopJobs() })
//	if err := elector.Start(ctx); err != nil {
//	    return err
//	}
//	defer elector.Stop(context.Background())
func NewElector(cfg *Config, service LockService, opts ...Option) (*Elector, error) {
	if service == nil {
		return nil, ErrLockServiceRequired
	}

	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	SetDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	o := electorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}

	c.ValidateWithWarnings(o.logger)

	return &Elector{
		cfg:     c,
		service: service,
		clock:   o.clock,
		logger:  o.logger,
		metrics: o.metrics,
		events:  events.NewBroadcaster(o.logger, o.metrics),
	}, nil
}

// Key returns the lock key this elector contends for.
func (e *Elector) Key() string {
	return e.cfg.Key
}

// IsLeader reports whether this instance currently holds leadership.
func (e *Elector) IsLeader() bool {
	return e.leader.Load()
}

// State returns the current leadership state.
func (e *Elector) State() LeadershipState {
	if e.leader.Load() {
		return Leader
	}

	return NotLeader
}

// On registers handler for events of the given kind.
//
// Handlers for one event run synchronously, in registration order, on the
// goroutine that produced the event. A panicking handler is recovered and
// logged.
//
// Parameters:
//   - kind: EventElected, EventExtended, EventRevoked or EventError
//   - handler: Callback
//
// Returns:
//   - func(): Removes the handler
func (e *Elector) On(kind EventKind, handler EventHandler) func() {
	return e.events.On(kind, handler)
}

// Subscribe returns a channel receiving every event.
//
// Delivery never blocks the elector: when the channel buffer is full the
// event is dropped for this subscriber and counted in metrics.
//
// Parameters:
//   - buffer: Channel capacity (a small default if <= 0)
//
// Returns:
//   - <-chan Event: Event channel, closed by unsubscribe
//   - func(): Unsubscribe function
func (e *Elector) Subscribe(buffer int) (<-chan Event, func()) {
	return e.events.Subscribe(buffer)
}

// Start begins the election loop.
//
// The first acquisition attempt runs before Start returns, bounded by ctx and
// OperationTimeout, so IsLeader reflects its outcome immediately. Later steps
// run on timer goroutines until Stop.
//
// Parameters:
//   - ctx: Context for the first acquisition attempt only
//
// Returns:
//   - error: ErrAlreadyStarted if the elector is running; the running loop is
//     left untouched
func (e *Elector) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.running = true
	e.epoch++
	epoch := e.epoch
	if notifier, ok := e.service.(ErrorNotifier); ok {
		e.unsubErrs = notifier.NotifyErrors(func(err error) {
			e.onServiceError(epoch, err)
		})
	}
	e.mu.Unlock()

	e.logger.Info("leader election started", "key", e.cfg.Key, "ttl", e.cfg.TTL)
	e.acquire(ctx, epoch)

	return nil
}

// Stop ends the election loop and gives up leadership.
//
// Stop cancels the pending timer, stops listening for service errors and,
// when leading, releases the lock on a best-effort basis (release errors
// are logged and swallowed). No revoked event is emitted. Events of this run
// not yet delivered when Stop closes the run are dropped, including the
// remaining handlers of an event being delivered; a handler already running
// (such as the one calling Stop) finishes normally. Calling Stop on an
// elector that is not running is a no-op.
//
// Parameters:
//   - ctx: Bounds the release; ReleaseTimeout applies if ctx has no deadline
//
// Returns:
//   - error: ctx.Err() if ctx was already done when the release was due
//     (the release is still attempted with ReleaseTimeout), nil otherwise
func (e *Elector) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()

		return nil
	}

	e.running = false
	e.epoch++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	unsubscribe := e.unsubErrs
	e.unsubErrs = nil
	lock := e.lock
	e.lock = nil
	e.leader.Store(false)
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	var err error
	if lock != nil {
		e.metrics.RecordLeadershipChange(false)

		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			ctx = context.WithoutCancel(ctx)
		}
		e.release(ctx, lock)
	}

	e.logger.Info("leader election stopped", "key", e.cfg.Key, "was_leader", lock != nil)

	return err
}

// acquire runs one acquisition step.
func (e *Elector) acquire(ctx context.Context, epoch uint64) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	start := e.clock.Now()
	lock, err := e.service.Acquire(opCtx, e.cfg.Key, e.cfg.TTL)
	cancel()
	if err == nil && lock == nil {
		err = fmt.Errorf("%w: lock service returned no lock", ErrLockHeld)
	}
	e.metrics.RecordLockOperation(opAcquire, err == nil, e.clock.Since(start).Seconds())

	if err != nil {
		e.logger.Debug("leadership acquisition failed", "key", e.cfg.Key, "error", err)
		if e.demote(epoch) {
			e.logger.Warn("leadership revoked", "key", e.cfg.Key, "error", err)
			e.emit(epoch, Event{Kind: EventRevoked, Err: err})
		}
		e.schedule(epoch, e.cfg.RetryWait, e.acquire)

		return
	}

	promoted, current := e.promote(epoch, lock)
	if !current {
		// Stopped while the call was in flight; give back what we got.
		e.logger.Debug("releasing lock acquired after stop", "key", e.cfg.Key)
		e.release(context.Background(), lock)

		return
	}
	if promoted {
		e.logger.Info("elected as leader", "key", e.cfg.Key)
		e.emit(epoch, Event{Kind: EventElected})
	}
	e.schedule(epoch, e.cfg.TTL/2, e.renew)
}

// renew runs one renewal step.
func (e *Elector) renew(ctx context.Context, epoch uint64) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	lock := e.lock
	e.mu.Unlock()

	if lock == nil {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, e.cfg.OperationTimeout)
	start := e.clock.Now()
	err := lock.Extend(opCtx, e.cfg.TTL)
	cancel()
	e.metrics.RecordLockOperation(opExtend, err == nil, e.clock.Since(start).Seconds())

	if err == nil {
		e.logger.Debug("leadership extended", "key", e.cfg.Key)
		e.emit(epoch, Event{Kind: EventExtended})
		e.schedule(epoch, e.cfg.TTL/2, e.renew)

		return
	}

	if e.demote(epoch) {
		e.logger.Warn("leadership revoked", "key", e.cfg.Key, "error", err)
		e.emit(epoch, Event{Kind: EventRevoked, Err: err})
	}
	e.schedule(epoch, e.cfg.RevokedRetryWait, e.acquire)
}

// promote stores lock as the current handle.
//
// Returns:
//   - promoted: true on a NotLeader → Leader transition
//   - current: false if epoch is stale and lock was not stored
func (e *Elector) promote(epoch uint64, lock Lock) (promoted, current bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || epoch != e.epoch {
		return false, false
	}

	wasLeader := e.lock != nil
	e.lock = lock
	e.leader.Store(true)
	if !wasLeader {
		e.metrics.RecordLeadershipChange(true)
	}

	return !wasLeader, true
}

// demote clears the handle; it reports true on a Leader → NotLeader transition.
func (e *Elector) demote(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch != e.epoch || e.lock == nil {
		return false
	}

	e.lock = nil
	e.leader.Store(false)
	e.metrics.RecordLeadershipChange(false)

	return true
}

// schedule replaces the pending timer with one running step after d.
// Stale epochs schedule nothing.
func (e *Elector) schedule(epoch uint64, d time.Duration, step func(context.Context, uint64)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || epoch != e.epoch {
		return
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = e.clock.AfterFunc(d, func() {
		step(context.Background(), epoch)
	})
}

// emit publishes ev for as long as epoch stays open.
func (e *Elector) emit(epoch uint64, ev Event) {
	if !e.isCurrent(epoch) {
		return
	}

	ev.Time = e.clock.Now()
	e.events.Publish(ev, func() bool {
		return e.isCurrent(epoch)
	})
}

func (e *Elector) isCurrent(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running && epoch == e.epoch
}

// onServiceError turns an asynchronous lock service error into an error
// event. Leadership state is not affected.
func (e *Elector) onServiceError(epoch uint64, err error) {
	if !e.isCurrent(epoch) {
		return
	}

	e.metrics.RecordClientError()
	e.logger.Warn("lock service error", "key", e.cfg.Key, "error", err)
	e.emit(epoch, Event{Kind: EventError, Err: err})
}

// release gives lock back, bounded by ReleaseTimeout when ctx has no deadline.
func (e *Elector) release(ctx context.Context, lock Lock) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ReleaseTimeout)
		defer cancel()
	}

	start := e.clock.Now()
	err := lock.Release(ctx)
	e.metrics.RecordLockOperation(opRelease, err == nil, e.clock.Since(start).Seconds())
	if err != nil {
		e.logger.Debug("lock release failed", "key", e.cfg.Key, "error", err)
	}
}
