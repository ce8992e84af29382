package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled for testing.
//
// The server runs in-process with JetStream enabled and stores data in a temporary
// directory that is automatically cleaned up when the test completes. This provides
// a fast, reliable way to test NATS-dependent code without external dependencies.
//
// The server uses a random available port to avoid conflicts in parallel tests.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//
// Returns:
//   - *server.Server: The embedded NATS server instance
//   - *nats.Conn: Connected NATS client (closed automatically on test completion)
//
// Example:
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := leadertest.StartEmbeddedNATS(t)
//	    kv := leadertest.CreateJetStreamKV(t, nc, "locks")
//	    store := natsstore.New("n1", kv)
//	}
func StartEmbeddedNATS(t testing.TB) (*server.Server, *nats.Conn) {
	t.Helper()

	// Create server with random port and JetStream enabled
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,          // Use random available port
		JetStream: true,        // Enable JetStream for KV stores
		StoreDir:  t.TempDir(), // Use test temp dir (auto-cleanup)
		LogFile:   "",          // Disable file logging
		Debug:     false,       // Disable debug output
		Trace:     false,       // Disable trace output
		NoLog:     true,        // Suppress all server logs in tests
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS server: %v", err)
	}

	// Start server in background goroutine
	go ns.Start()

	// Wait for server to be ready (with timeout)
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("Embedded NATS server not ready within timeout")
	}

	// Connect client to the server
	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(0),
	)
	if err != nil {
		ns.Shutdown()
		t.Fatalf("Failed to connect to embedded NATS server: %v", err)
	}

	// Register cleanup handlers (executed in reverse order)
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, nc
}

// StartIndependentNATS starts n unrelated single-node NATS servers with
// JetStream enabled.
//
// The servers share no routes, so each one is an independent failure domain.
// This is the topology a quorum lock expects: one KV bucket per server, and
// shutting one server down removes exactly one vote.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//   - n: Number of servers to start
//
// Returns:
//   - []*server.Server: The embedded servers, in start order
//   - []*nats.Conn: One client connection per server, same order
//
// Example:
//
//	func TestQuorum(t *testing.T) {
//	    servers, conns := leadertest.StartIndependentNATS(t, 3)
//	    servers[0].Shutdown() // one store becomes unreachable
//	}
func StartIndependentNATS(t testing.TB, n int) ([]*server.Server, []*nats.Conn) {
	t.Helper()

	servers := make([]*server.Server, n)
	conns := make([]*nats.Conn, n)
	for i := range n {
		servers[i], conns[i] = StartEmbeddedNATS(t)
	}

	return servers, conns
}

// CreateJetStreamKV creates an in-memory JetStream KV bucket for lock tests.
//
// The bucket keeps a single revision per key and expires entries after one
// minute, which bounds any lock a test forgets to release.
//
// Parameters:
//   - t: Testing context
//   - nc: NATS connection (from StartEmbeddedNATS)
//   - bucketName: Name of the KV bucket to create
//
// Returns:
//   - jetstream.KeyValue: The created KV bucket interface
//
// Example:
//
//	func TestNATSStore(t *testing.T) {
//	    _, nc := leadertest.StartEmbeddedNATS(t)
//	    kv := leadertest.CreateJetStreamKV(t, nc, "locks")
//	}
func CreateJetStreamKV(t testing.TB, nc *nats.Conn, bucketName string) jetstream.KeyValue {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("Failed to get JetStream context: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Test lock bucket: %s", bucketName),
		History:     1,
		TTL:         1 * time.Minute,
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		t.Fatalf("Failed to create KV bucket %s: %v", bucketName, err)
	}

	return kv
}
