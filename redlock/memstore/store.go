// Package memstore provides an in-process redlock.Store.
//
// The store is mainly useful for tests and single-process demos: Fail makes
// every call return types.ErrStoreUnavailable until Recover is called, which
// simulates an unreachable node inside a quorum.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/torghul/redlock-leader/redlock"
	"github.com/torghul/redlock-leader/types"
)

type entry struct {
	token   string
	expires time.Time
}

// Store is an in-memory lock store with ttl-based expiry.
type Store struct {
	name  string
	clock clockwork.Clock

	failing atomic.Bool

	mu      sync.Mutex
	entries map[string]entry
}

var _ redlock.Store = (*Store)(nil)

// New creates an empty store.
//
// Parameters:
//   - name: Store name used in errors and metrics
//   - clock: Clock for expiry (real clock if nil)
//
// Returns:
//   - *Store: Empty, healthy store
func New(name string, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Store{
		name:    name,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Fail makes the store unreachable and drops every held key, as a crashed
// node without persistence would.
func (s *Store) Fail() {
	s.failing.Store(true)

	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()
}

// Recover makes the store reachable again.
func (s *Store) Recover() {
	s.failing.Store(false)
}

// Holder returns the token currently holding key, if any.
func (s *Store) Holder(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return "", false
	}

	return e.token, true
}

// Acquire sets key to token if key is free or expired.
func (s *Store) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.live(key); held {
		return false, nil
	}
	s.entries[key] = entry{token: token, expires: s.clock.Now().Add(ttl)}

	return true, nil
}

// Extend resets the expiry of key if token still holds it.
func (s *Store) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, held := s.live(key)
	if !held || e.token != token {
		return false, nil
	}
	s.entries[key] = entry{token: token, expires: s.clock.Now().Add(ttl)}

	return true, nil
}

// Release deletes key if token holds it.
func (s *Store) Release(ctx context.Context, key, token string) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, held := s.live(key); held && e.token == token {
		delete(s.entries, key)
	}

	return nil
}

// live returns the unexpired entry for key, dropping an expired one.
// Caller must hold s.mu.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if !s.clock.Now().Before(e.expires) {
		delete(s.entries, key)
		return entry{}, false
	}

	return e, true
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failing.Load() {
		return fmt.Errorf("memstore %s: %w", s.name, types.ErrStoreUnavailable)
	}

	return nil
}
