package rediscache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"exposureshield/pkg/cache/rediscache"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", host, port.Int())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestStore_RoundTrip(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	s := rediscache.New(client, "test:")

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "range:ABCDE", []byte("SUFFIX:3"), time.Minute))
	v, ok, err := s.Get(ctx, "range:ABCDE")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "SUFFIX:3", string(v))

	ttl, err := client.TTL(ctx, "test:range:ABCDE").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func TestStore_SetNX(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	s := rediscache.New(client, "test:")

	stored, err := s.SetNX(ctx, "seen:sig", []byte("1"), time.Minute)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = s.SetNX(ctx, "seen:sig", []byte("1"), time.Minute)
	require.NoError(t, err)
	require.False(t, stored)
}
