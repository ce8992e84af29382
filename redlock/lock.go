package redlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/torghul/redlock-leader/types"
)

// Lock is a quorum lock handle returned by Redlock.Acquire.
//
// A Lock is invalid once Extend fails or Release is called.
type Lock struct {
	r     *Redlock
	key   string
	token string

	mu         sync.Mutex
	expiration time.Time
	released   bool
}

var _ types.Lock = (*Lock)(nil)

// Key returns the locked key.
func (l *Lock) Key() string {
	return l.key
}

// Token returns the random value identifying this holder in every store.
func (l *Lock) Token() string {
	return l.token
}

// Expiration returns the instant after which the lock must be assumed lost,
// already reduced by the drift allowance.
func (l *Lock) Expiration() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.expiration
}

// Extend resets the lock ttl on a quorum of stores.
//
// On failure the partial extensions are released and the handle becomes
// invalid.
//
// Parameters:
//   - ctx: Context bounding the store calls
//   - ttl: New lock duration, counted from now
//
// Returns:
//   - error: types.ErrLockLost, types.ErrNotHeld after Release, or types.ErrInvalidTTL
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidTTL, ttl)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return fmt.Errorf("%w: key %q", types.ErrNotHeld, l.key)
	}

	r := l.r
	start := r.clock.Now()
	votes := r.vote(ctx, opExtend, l.key, func(ctx context.Context, s Store) (bool, error) {
		return s.Extend(ctx, l.key, l.token, ttl)
	})

	validity := r.validity(start, ttl)
	if votes >= r.quorum && validity > 0 {
		l.expiration = start.Add(validity)
		return nil
	}

	l.released = true
	_ = r.releaseAll(ctx, l.key, l.token)

	return fmt.Errorf("%w: key %q extended on %d/%d stores (quorum %d)",
		types.ErrLockLost, l.key, votes, len(r.stores), r.quorum)
}

// Release removes the lock from every store.
//
// Returns:
//   - error: Joined store errors; nil when every store answered, or when the
//     handle was already released
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return nil
	}
	l.released = true

	return l.r.releaseAll(ctx, l.key, l.token)
}
