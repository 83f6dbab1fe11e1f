package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jason-s-yu/streamify/internal/cache"
	"github.com/jason-s-yu/streamify/pkg/models"
)

// startRedis runs a throwaway redis container when STREAMIFY_INTEGRATION is set.
func startRedis(t *testing.T) string {
	t.Helper()
	if os.Getenv("STREAMIFY_INTEGRATION") == "" {
		t.Skip("set STREAMIFY_INTEGRATION=1 to run redis integration tests")
	}
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisBrokerRoundTrip(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	rdb, err := cache.Connect(ctx, cache.Options{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	// separate brokers stand in for two API instances sharing redis
	sender := NewRedisBroker(rdb, quietLogger())
	receiver := NewRedisBroker(rdb, quietLogger())

	alice, err := receiver.Subscribe(ctx, "alice")
	require.NoError(t, err)
	defer alice.Close()
	bob, err := receiver.Subscribe(ctx, "bob")
	require.NoError(t, err)
	defer bob.Close()

	// malformed payloads are skipped, not delivered
	require.NoError(t, rdb.Publish(ctx, Channel("alice"), "not json").Err())

	ev, err := NewEvent(FriendRequestReceived, FriendRequestPayload{
		Request: models.FriendRequest{ID: "fr1", SenderID: "bob", RecipientID: "alice", Status: models.FriendRequestPending},
	})
	require.NoError(t, err)
	require.NoError(t, sender.Publish(ctx, "alice", ev))

	got := receive(t, alice)
	assert.Equal(t, FriendRequestReceived, got.Type)
	var payload FriendRequestPayload
	require.NoError(t, got.Decode(&payload))
	assert.Equal(t, "fr1", payload.Request.ID)

	select {
	case ev := <-bob.Events():
		t.Fatalf("bob received alice's event: %v", ev.Type)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, alice.Close())
	select {
	case _, ok := <-alice.Events():
		assert.False(t, ok, "events channel closes after Close")
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
	assert.NoError(t, alice.Close(), "Close is idempotent")
}
