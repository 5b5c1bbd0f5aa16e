package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSlotLockerRunsAndReleases(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	ran := false
	err := locker.WithSlotLock(context.Background(), "42", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:slot:42"), "lock key should exist while held")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:slot:42"), "lock key should be released")
}

func TestRedisSlotLockerRejectsHeldSlot(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set("lock:slot:7", "someone-else"))

	locker := NewRedisSlotLocker(client, 5*time.Second)
	err := locker.WithSlotLock(context.Background(), "7", func(ctx context.Context) error {
		t.Fatal("critical section must not run")
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)

	val, getErr := mr.Get("lock:slot:7")
	require.NoError(t, getErr)
	assert.Equal(t, "someone-else", val, "foreign lock must not be released")
}

func TestRedisSlotLockerPropagatesError(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	boom := errors.New("boom")
	err := locker.WithSlotLock(context.Background(), "1", func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:slot:1"))
}

func TestLocalSlotLockerIsReentrantSafe(t *testing.T) {
	locker := NewLocalSlotLocker()

	err := locker.WithSlotLock(context.Background(), "3", func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, "3", func(context.Context) error { return nil })
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		other := locker.WithSlotLock(ctx, "4", func(context.Context) error { return nil })
		assert.NoError(t, other)
		return nil
	})
	require.NoError(t, err)

	assert.NoError(t, locker.WithSlotLock(context.Background(), "3", func(context.Context) error { return nil }))
}

func TestNewLockerWithoutAddrIsLocal(t *testing.T) {
	locker, client, err := NewLocker(context.Background(), Options{LockTTL: time.Second})
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.IsType(t, &localSlotLocker{}, locker)
}

func TestNewLockerConnectsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	locker, client, err := NewLocker(context.Background(), Options{Addr: mr.Addr(), LockTTL: time.Second})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()
	assert.IsType(t, &redisSlotLocker{}, locker)
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), Options{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
