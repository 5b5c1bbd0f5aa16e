package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the connection used for slot locks. An empty Addr means
// no redis at all.
type Options struct {
	Addr     string
	Username string
	Password string
	PoolSize int
	LockTTL  time.Duration
}

// NewRedisClient connects and pings within ctx, bounded to five seconds.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// NewLocker returns a Redis-backed locker when opts.Addr is set and an
// in-process one otherwise. The returned client is nil in the latter case.
func NewLocker(ctx context.Context, opts Options) (Locker, *redis.Client, error) {
	if opts.Addr == "" {
		return NewLocalSlotLocker(), nil, nil
	}
	rdb, err := NewRedisClient(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return NewRedisSlotLocker(rdb, opts.LockTTL), rdb, nil
}
