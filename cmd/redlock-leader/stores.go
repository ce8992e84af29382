package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/torghul/redlock-leader/internal/appconfig"
	"github.com/torghul/redlock-leader/redlock"
	"github.com/torghul/redlock-leader/redlock/memstore"
	"github.com/torghul/redlock-leader/redlock/natsstore"
	"github.com/torghul/redlock-leader/redlock/redisstore"
	"github.com/torghul/redlock-leader/redlock/sqlitestore"
	"github.com/torghul/redlock-leader/types"
)

// storeSet is the set of Redlock nodes built from configuration, together
// with the connections that must be closed on shutdown.
type storeSet struct {
	stores  []redlock.Store
	closers []func() error
}

func (s *storeSet) add(store redlock.Store, closer func() error) {
	s.stores = append(s.stores, store)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// Close closes every connection in reverse order of creation.
func (s *storeSet) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil

	return errors.Join(errs...)
}

// buildStores opens one store per configured node.
//
// A node that cannot be reached at startup is still a fatal error for
// sqlite and nats, whose stores need a handle to exist. Redis clients
// connect lazily, so an unreachable Redis node is only logged and counts as
// a failed vote until it comes back.
//
// Parameters:
//   - ctx: Context bounding connection setup
//   - cfg: Store configuration
//   - leaseTTL: Election TTL; NATS buckets keep entries at least this long
//   - logger: Logger for startup diagnostics
func buildStores(ctx context.Context, cfg appconfig.StoresConfig, leaseTTL time.Duration, logger types.Logger) (*storeSet, error) {
	set := &storeSet{}

	var err error
	switch cfg.Backend {
	case appconfig.BackendMemory:
		for i := range cfg.Memory.Count {
			set.add(memstore.New(fmt.Sprintf("memory-%d", i), nil), nil)
		}
	case appconfig.BackendRedis:
		buildRedis(ctx, set, cfg, logger)
	case appconfig.BackendNATS:
		err = buildNATS(ctx, set, cfg, leaseTTL)
	case appconfig.BackendSQLite:
		err = buildSQLite(ctx, set, cfg)
	default:
		err = fmt.Errorf("%w: unknown store backend %q", types.ErrInvalidConfig, cfg.Backend)
	}

	if err != nil {
		_ = set.Close()
		return nil, err
	}

	return set, nil
}

func buildRedis(ctx context.Context, set *storeSet, cfg appconfig.StoresConfig, logger types.Logger) {
	for _, addr := range cfg.Redis.Addrs {
		client := redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Timeout,
		})

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis node unreachable at startup", "addr", addr, "error", err)
		}
		cancel()

		set.add(redisstore.New(addr, client, redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix)), client.Close)
	}
}

func buildNATS(ctx context.Context, set *storeSet, cfg appconfig.StoresConfig, leaseTTL time.Duration) error {
	storage := jetstream.FileStorage
	if cfg.NATS.Storage == "memory" {
		storage = jetstream.MemoryStorage
	}

	for _, url := range cfg.NATS.URLs {
		nc, err := nats.Connect(url,
			nats.Name("redlock-leader"),
			nats.Timeout(cfg.Timeout),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("connect to NATS %s: %w", url, err)
		}
		closeConn := func() error {
			nc.Close()
			return nil
		}

		js, err := jetstream.New(nc)
		if err != nil {
			_ = closeConn()
			return fmt.Errorf("jetstream %s: %w", url, err)
		}

		openCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		store, err := natsstore.Open(openCtx, url, js, natsstore.BucketConfig{
			Bucket:   cfg.NATS.Bucket,
			TTL:      2 * leaseTTL,
			Storage:  storage,
			Replicas: cfg.NATS.Replicas,
		})
		cancel()
		if err != nil {
			_ = closeConn()
			return fmt.Errorf("open bucket on %s: %w", url, err)
		}

		set.add(store, closeConn)
	}

	return nil
}

func buildSQLite(ctx context.Context, set *storeSet, cfg appconfig.StoresConfig) error {
	for _, path := range cfg.SQLite.Paths {
		openCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		store, err := sqlitestore.Open(openCtx, path, sqlitestore.Config{
			Path:        path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("open sqlite %s: %w", path, err)
		}

		set.add(store, store.Close)
	}

	return nil
}
