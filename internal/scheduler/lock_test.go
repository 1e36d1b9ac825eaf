package scheduler

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *RedisLock {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLock(client)
}

func TestRedisLock_Exclusive(t *testing.T) {
	lock := setupRedis(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "anchor", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	second, err := lock.Acquire(ctx, "anchor", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, release(ctx))

	third, err := lock.Acquire(ctx, "anchor", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestRedisLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	lock := setupRedis(t)
	ctx := context.Background()

	stale, err := lock.Acquire(ctx, "monitor", 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, stale)
	time.Sleep(300 * time.Millisecond)

	current, err := lock.Acquire(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, current)

	require.NoError(t, stale(ctx))

	again, err := lock.Acquire(ctx, "monitor", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again, "the expired holder must not free the current lock")
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("http://nope")
	assert.Error(t, err)
}
