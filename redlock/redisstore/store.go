// Package redisstore provides a redlock.Store backed by a single Redis node.
//
// Acquire uses SET NX PX. Extend and Release are Lua scripts that compare
// the stored token before touching the key, so a holder whose lease expired
// can never extend or delete a lock that now belongs to someone else.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/torghul/redlock-leader/redlock"
	"github.com/torghul/redlock-leader/types"
)

var (
	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)
)

// Client is the subset of the go-redis client API used by the store.
// *redis.Client, *redis.ClusterClient and *redis.Ring all satisfy it.
type Client interface {
	redis.Cmdable
	redis.Scripter
}

// Store is a Redis lock node.
type Store struct {
	name   string
	client Client
	prefix string
}

var _ redlock.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix prepends prefix to every lock key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store over client.
//
// Parameters:
//   - name: Store name used in errors and metrics
//   - client: Connected go-redis client
//   - opts: Optional settings
//
// Returns:
//   - *Store: Store ready for use in a redlock.Redlock
func New(name string, client Client, opts ...Option) *Store {
	s := &Store{name: name, client: client}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Acquire sets key to token with the given ttl if key does not exist.
func (s *Store) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, token, ttl).Result()
	if err != nil {
		return false, wrapError("acquire", err)
	}

	return ok, nil
}

// Extend resets the ttl of key if it still holds token.
func (s *Store) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, s.client, []string{s.prefix + key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, wrapError("extend", err)
	}

	return n == 1, nil
}

// Release deletes key if it holds token.
func (s *Store) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + key}, token).Err(); err != nil {
		return wrapError("release", err)
	}

	return nil
}

func wrapError(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || types.IsConnectivityError(err) {
		return fmt.Errorf("redis %s: %w: %w", op, types.ErrConnectivity, err)
	}

	return fmt.Errorf("redis %s: %w", op, err)
}
