// Package natsstore provides a redlock.Store backed by a NATS JetStream KV bucket.
//
// Each key holds a small JSON record with the holder token and the lease
// deadline. All writes are conditional on the revision read just before, so
// concurrent contenders cannot both win:
//   - Acquire: Create, or Update over an expired record
//   - Extend: Update with the revision of our own record
//   - Release: Delete with LastRevision of our own record
//
// The bucket-level TTL only garbage-collects abandoned records; lease expiry
// is decided by the deadline stored in the record.
package natsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/torghul/redlock-leader/internal/kvutil"
	"github.com/torghul/redlock-leader/internal/natsutil"
	"github.com/torghul/redlock-leader/redlock"
)

// BucketConfig describes the KV bucket created by Open.
type BucketConfig = kvutil.BucketConfig

// record is the value stored under a lock key.
type record struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"` // unix nanoseconds
}

// Store is a NATS KV lock node.
type Store struct {
	name  string
	kv    jetstream.KeyValue
	clock clockwork.Clock
}

var _ redlock.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to compute and check lease deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New creates a store over an existing KV bucket.
//
// Parameters:
//   - name: Store name used in errors and metrics
//   - kv: KV bucket; its TTL should be at least the longest lease
//   - opts: Optional settings
//
// Returns:
//   - *Store: Store ready for use in a redlock.Redlock
func New(name string, kv jetstream.KeyValue, opts ...Option) *Store {
	s := &Store{name: name, kv: kv, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open creates or opens the bucket described by cfg and returns a store over it.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - name: Store name used in errors and metrics
//   - js: JetStream context of the NATS server backing this store
//   - cfg: Bucket configuration
//   - opts: Optional settings
//
// Returns:
//   - *Store: Store over the bucket
//   - error: Bucket creation error
func Open(ctx context.Context, name string, js jetstream.JetStream, cfg BucketConfig, opts ...Option) (*Store, error) {
	kv, err := kvutil.EnsureBucket(ctx, js, cfg)
	if err != nil {
		return nil, natsutil.WrapError("nats open bucket", err)
	}

	return New(name, kv, opts...), nil
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Acquire writes a record for token if key is absent or its lease expired.
func (s *Store) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	value, err := s.encode(token, ttl)
	if err != nil {
		return false, err
	}

	_, err = s.kv.Create(ctx, key, value)
	if err == nil {
		return true, nil
	}
	if !isConflict(err) {
		return false, natsutil.WrapError("nats acquire", err)
	}

	entry, rec, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	if entry == nil {
		// Deleted between Create and Get; the next attempt will win or lose cleanly.
		return false, nil
	}
	if s.live(rec) {
		return false, nil
	}

	_, err = s.kv.Update(ctx, key, value, entry.Revision())
	if err != nil {
		if isConflict(err) {
			return false, nil
		}

		return false, natsutil.WrapError("nats acquire takeover", err)
	}

	return true, nil
}

// Extend moves the lease deadline of key if token holds an unexpired lease.
func (s *Store) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	entry, rec, err := s.load(ctx, key)
	if err != nil {
		return false, err
	}
	if entry == nil || rec.Token != token || !s.live(rec) {
		return false, nil
	}

	value, err := s.encode(token, ttl)
	if err != nil {
		return false, err
	}

	_, err = s.kv.Update(ctx, key, value, entry.Revision())
	if err != nil {
		if isConflict(err) {
			return false, nil
		}

		return false, natsutil.WrapError("nats extend", err)
	}

	return true, nil
}

// Release deletes key if token holds it.
func (s *Store) Release(ctx context.Context, key, token string) error {
	entry, rec, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if entry == nil || rec.Token != token {
		return nil
	}

	err = s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision()))
	if err != nil && !isConflict(err) && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return natsutil.WrapError("nats release", err)
	}

	return nil
}

// load returns the current entry and its decoded record; a nil entry means
// the key does not exist.
func (s *Store) load(ctx context.Context, key string) (jetstream.KeyValueEntry, record, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, record{}, nil
		}

		return nil, record{}, natsutil.WrapError("nats get", err)
	}

	var rec record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		// Unreadable records are treated as expired so they can be taken over.
		return entry, record{}, nil
	}

	return entry, rec, nil
}

func (s *Store) encode(token string, ttl time.Duration) ([]byte, error) {
	data, err := json.Marshal(record{Token: token, ExpiresAt: s.clock.Now().Add(ttl).UnixNano()})
	if err != nil {
		return nil, fmt.Errorf("nats encode lock record: %w", err)
	}

	return data, nil
}

func (s *Store) live(rec record) bool {
	return s.clock.Now().UnixNano() < rec.ExpiresAt
}

// isConflict reports a failed revision check.
func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}
