// Package sqlitestore provides a redlock.Store backed by a SQLite database file.
//
// Every write is a single conditional statement, so concurrent processes
// sharing the file through WAL mode stay consistent without explicit
// transactions.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/torghul/redlock-leader/redlock"
	"github.com/torghul/redlock-leader/types"
)

// Config configures the database connection.
type Config struct {
	Path            string        `yaml:"path"`
	BusyTimeout     time.Duration `yaml:"busyTimeout"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

func (c *Config) setDefaults() {
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
}

// Store is a SQLite lock node.
type Store struct {
	name  string
	db    *sql.DB
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

// Open opens (creating if needed) the database at cfg.Path, applies pragmas
// and migrations, and returns a store over it.
//
// Parameters:
//   - ctx: Context for the health check and migrations
//   - name: Store name used in errors and metrics
//   - cfg: Connection settings; Path is required
//   - opts: Optional settings
//
// Returns:
//   - *Store: Store ready for use in a redlock.Redlock; Close it when done
//   - error: Open, pragma or migration failure
func Open(ctx context.Context, name string, cfg Config, opts ...Option) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", types.ErrInvalidConfig)
	}
	cfg.setDefaults()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL",
		cfg.Path,
		cfg.BusyTimeout.Milliseconds(),
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{name: name, db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Acquire inserts a lease for token, or replaces an expired one.
func (s *Store) Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO redlock_locks(lock_key, token, expires_at_ns, updated_at_ns)
VALUES(?, ?, ?, ?)
ON CONFLICT(lock_key) DO UPDATE SET
  token = excluded.token,
  expires_at_ns = excluded.expires_at_ns,
  updated_at_ns = excluded.updated_at_ns
WHERE redlock_locks.expires_at_ns <= ?;`,
		key, token, now.Add(ttl).UnixNano(), now.UnixNano(), now.UnixNano())
	if err != nil {
		return false, wrapError("acquire", err)
	}

	return affectedOne(res)
}

// Extend moves the lease deadline if token holds an unexpired lease.
func (s *Store) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx, `
UPDATE redlock_locks
SET expires_at_ns = ?, updated_at_ns = ?
WHERE lock_key = ? AND token = ? AND expires_at_ns > ?;`,
		now.Add(ttl).UnixNano(), now.UnixNano(), key, token, now.UnixNano())
	if err != nil {
		return false, wrapError("extend", err)
	}

	return affectedOne(res)
}

// Release deletes the lease if token holds it.
func (s *Store) Release(ctx context.Context, key, token string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM redlock_locks WHERE lock_key = ? AND token = ?;`, key, token); err != nil {
		return wrapError("release", err)
	}

	return nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite rows affected: %w", err)
	}

	return n == 1, nil
}

func wrapError(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || types.IsConnectivityError(err) {
		return fmt.Errorf("sqlite %s: %w: %w", op, types.ErrConnectivity, err)
	}

	return fmt.Errorf("sqlite %s: %w", op, err)
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply pragma failed (%s): %w", p, err)
		}
	}

	return nil
}
