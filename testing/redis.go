package testing

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// StartMiniRedis starts an in-process Redis server and a client connected to it.
//
// miniredis implements SET NX PX, EVAL and key expiry, which is everything a
// lock store needs. Expiry only advances through FastForward, so tests
// control lease time explicitly.
//
// Parameters:
//   - t: Testing context for cleanup
//
// Returns:
//   - *miniredis.Miniredis: The server, for FastForward and fault injection
//   - *redis.Client: Client connected to the server (closed automatically)
//
// Example:
//
//	mr, rdb := leadertest.StartMiniRedis(t)
//	store := redisstore.New("r1", rdb)
//	mr.FastForward(10 * time.Second) // expire every lock
func StartMiniRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return mr, rdb
}
