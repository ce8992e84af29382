package testing

import (
	"context"
	"sync"
	"time"

	"github.com/torghul/redlock-leader/types"
)

// FakeLockService is a scriptable types.LockService and types.ErrorNotifier.
//
// Outcomes are consumed in order from per-operation queues; once a queue is
// empty the default outcome for that operation applies (success unless set
// otherwise). A nil entry means success.
type FakeLockService struct {
	mu sync.Mutex

	acquireQueue      []error
	extendQueue       []error
	defaultAcquireErr error
	defaultExtendErr  error
	releaseErr        error
	acquireGate       chan struct{}
	extendGate        chan struct{}

	acquireCalls int
	extendCalls  int
	releaseCalls int
	lastKey      string
	lastTTL      time.Duration
	nextLockID   int

	nextHandlerID uint64
	handlers      map[uint64]func(error)
}

var (
	_ types.LockService   = (*FakeLockService)(nil)
	_ types.ErrorNotifier = (*FakeLockService)(nil)
)

// NewFakeLockService creates a service whose operations all succeed.
func NewFakeLockService() *FakeLockService {
	return &FakeLockService{handlers: make(map[uint64]func(error))}
}

// QueueAcquire appends outcomes for the next Acquire calls.
func (f *FakeLockService) QueueAcquire(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireQueue = append(f.acquireQueue, errs...)
}

// QueueExtend appends outcomes for the next Extend calls on any lock.
func (f *FakeLockService) QueueExtend(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extendQueue = append(f.extendQueue, errs...)
}

// SetAcquireError sets the Acquire outcome used when its queue is empty.
func (f *FakeLockService) SetAcquireError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultAcquireErr = err
}

// SetExtendError sets the Extend outcome used when its queue is empty.
func (f *FakeLockService) SetExtendError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultExtendErr = err
}

// SetReleaseError sets the error returned by every Release.
func (f *FakeLockService) SetReleaseError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseErr = err
}

// BlockAcquire makes subsequent Acquire calls wait until the returned
// function is called or their context is done. The call is counted before
// it blocks, so tests can wait for AcquireCalls to observe it in flight.
func (f *FakeLockService) BlockAcquire() (unblock func()) {
	gate := make(chan struct{})

	f.mu.Lock()
	f.acquireGate = gate
	f.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.acquireGate == gate {
				f.acquireGate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// BlockExtend makes subsequent Extend calls wait until the returned function
// is called or their context is done. Like BlockAcquire, the call is counted
// before it blocks.
func (f *FakeLockService) BlockExtend() (unblock func()) {
	gate := make(chan struct{})

	f.mu.Lock()
	f.extendGate = gate
	f.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.extendGate == gate {
				f.extendGate = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Acquire returns the next scripted outcome.
func (f *FakeLockService) Acquire(ctx context.Context, key string, ttl time.Duration) (types.Lock, error) {
	f.mu.Lock()
	f.acquireCalls++
	f.lastKey = key
	f.lastTTL = ttl
	gate := f.acquireGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.defaultAcquireErr
	if len(f.acquireQueue) > 0 {
		err = f.acquireQueue[0]
		f.acquireQueue = f.acquireQueue[1:]
	}
	if err != nil {
		return nil, err
	}

	f.nextLockID++

	return &FakeLock{svc: f, key: key, id: f.nextLockID}, nil
}

// NotifyErrors registers handler for errors injected with ReportError.
func (f *FakeLockService) NotifyErrors(handler func(err error)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextHandlerID++
	id := f.nextHandlerID
	f.handlers[id] = handler

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

// ReportError delivers err to every registered error handler, as a lock
// service does for asynchronous transport failures.
func (f *FakeLockService) ReportError(err error) {
	f.mu.Lock()
	handlers := make([]func(error), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}

// ErrorHandlers returns the number of registered error handlers.
func (f *FakeLockService) ErrorHandlers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.handlers)
}

// AcquireCalls returns the number of Acquire calls made so far.
func (f *FakeLockService) AcquireCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.acquireCalls
}

// ExtendCalls returns the number of Extend calls made so far.
func (f *FakeLockService) ExtendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.extendCalls
}

// ReleaseCalls returns the number of Release calls made so far.
func (f *FakeLockService) ReleaseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.releaseCalls
}

// LastKey returns the key of the most recent Acquire.
func (f *FakeLockService) LastKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastKey
}

// LastTTL returns the ttl of the most recent Acquire or Extend.
func (f *FakeLockService) LastTTL() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastTTL
}

// FakeLock is the handle returned by FakeLockService.Acquire.
type FakeLock struct {
	svc *FakeLockService
	key string
	id  int
}

var _ types.Lock = (*FakeLock)(nil)

// ID returns the sequence number of the Acquire that produced this lock.
func (l *FakeLock) ID() int {
	return l.id
}

// Extend returns the next scripted Extend outcome.
func (l *FakeLock) Extend(ctx context.Context, ttl time.Duration) error {
	f := l.svc
	f.mu.Lock()
	f.extendCalls++
	f.lastTTL = ttl
	gate := f.extendGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.defaultExtendErr
	if len(f.extendQueue) > 0 {
		err = f.extendQueue[0]
		f.extendQueue = f.extendQueue[1:]
	}

	return err
}

// Release counts the call and returns the configured release error.
func (l *FakeLock) Release(_ context.Context) error {
	f := l.svc
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseCalls++

	return f.releaseErr
}
