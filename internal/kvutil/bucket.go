// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultMaxRetries is the number of create/open attempts made by EnsureBucket
// when BucketConfig.MaxRetries is not positive.
const DefaultMaxRetries = 3

// BucketConfig describes a KV bucket used to hold lock entries.
type BucketConfig struct {
	// Bucket is the KV bucket name.
	Bucket string

	// TTL is the bucket-level max age applied to every entry. Lock entries
	// must never outlive this value, so it should be at least the lease TTL.
	TTL time.Duration

	// Storage selects file or memory storage (file by default).
	Storage jetstream.StorageType

	// Replicas is the stream replica count (1 if zero).
	Replicas int

	// MaxRetries bounds the create/open attempts.
	MaxRetries int
}

func (c BucketConfig) keyValueConfig() jetstream.KeyValueConfig {
	replicas := c.Replicas
	if replicas <= 0 {
		replicas = 1
	}

	return jetstream.KeyValueConfig{
		Bucket:      c.Bucket,
		Description: "redlock-leader lock entries",
		History:     1,
		TTL:         c.TTL,
		Storage:     c.Storage,
		Replicas:    replicas,
	}
}

// EnsureBucket creates or opens a lock KV bucket with retry logic.
//
// Several processes commonly start at once and race to create the same
// bucket; a losing creator opens the existing bucket instead. Transient
// failures are retried with exponential backoff (10ms, 20ms, 40ms, ...).
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - cfg: Bucket configuration
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error seen after all attempts, or the context error
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, kvutil.BucketConfig{
//	    Bucket: "leader-locks",
//	    TTL:    30 * time.Second,
//	})
func EnsureBucket(ctx context.Context, js jetstream.JetStream, cfg BucketConfig) (jetstream.KeyValue, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("kvutil: bucket name is required")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	kvCfg := cfg.keyValueConfig()

	var lastErr error
	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, kvCfg)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, openErr := js.KeyValue(ctx, cfg.Bucket)
			if openErr == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", openErr)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		cfg.Bucket, maxRetries, lastErr)
}
