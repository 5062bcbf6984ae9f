//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLocker(client, "test:", time.Second)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "reservation_slot:1:2024-06-08")
	require.NoError(t, err)

	_, ok, err := locker.TryLock(ctx, "reservation_slot:1:2024-06-08")
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	unlock()

	token, ok, err := locker.TryLock(ctx, "reservation_slot:1:2024-06-08")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, locker.Release(ctx, "reservation_slot:1:2024-06-08", token))
}

func TestRedisLockerReleaseIgnoresForeignToken(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLocker(client, "test:", time.Second)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "k", "someone-else"))
	value, err := client.Get(ctx, "test:k").Result()
	require.NoError(t, err)
	assert.Equal(t, token, value)
}

func TestRedisLockerAcquireTimesOut(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLocker(client, "test:", 5*time.Second)

	unlock, _, err := Acquire(context.Background(), locker, "busy", time.Second)
	require.NoError(t, err)
	defer unlock()

	_, _, err = Acquire(context.Background(), locker, "busy", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}
