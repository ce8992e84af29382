package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	leadertest "github.com/torghul/redlock-leader/testing"
)

func TestEnsureBucket(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	_, nc := leadertest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates bucket with configured TTL", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		kv, err := EnsureBucket(ctx, js, BucketConfig{
			Bucket:  "locks-create",
			TTL:     3 * time.Second,
			Storage: jetstream.MemoryStorage,
		})
		require.NoError(t, err)

		status, err := kv.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, "locks-create", status.Bucket())
		require.Equal(t, 3*time.Second, status.TTL())
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()

		cfg := BucketConfig{Bucket: "locks-existing", TTL: time.Second, Storage: jetstream.MemoryStorage}
		first, err := EnsureBucket(ctx, js, cfg)
		require.NoError(t, err)

		_, err = first.Put(ctx, "k", []byte("v"))
		require.NoError(t, err)

		second, err := EnsureBucket(ctx, js, cfg)
		require.NoError(t, err)

		entry, err := second.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), entry.Value())
	})

	t.Run("concurrent creators share one bucket", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
		defer cancel()

		const workers = 5
		cfg := BucketConfig{Bucket: "locks-concurrent", TTL: 5 * time.Second, Storage: jetstream.MemoryStorage}

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for range workers {
			wg.Go(func() {
				if _, err := EnsureBucket(ctx, js, cfg); err != nil {
					errs <- err
				}
			})
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("rejects empty bucket name", func(t *testing.T) {
		_, err := EnsureBucket(t.Context(), js, BucketConfig{})
		require.Error(t, err)
	})
}

func TestBucketConfig_KeyValueConfig(t *testing.T) {
	kvCfg := BucketConfig{Bucket: "b", TTL: time.Second}.keyValueConfig()

	require.Equal(t, "b", kvCfg.Bucket)
	require.Equal(t, 1, kvCfg.Replicas)
	require.Equal(t, uint8(1), kvCfg.History)
	require.Equal(t, time.Second, kvCfg.TTL)
}
