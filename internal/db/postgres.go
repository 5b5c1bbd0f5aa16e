package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions sizes the store pool. Zero values fall back to DefaultPoolOptions.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	MaxIdle     time.Duration
	PingTimeout time.Duration
}

// DefaultPoolOptions suits the console and lifecycle worker, which issue at
// most a handful of concurrent statements.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:    4,
		MinConns:    1,
		MaxIdle:     15 * time.Minute,
		PingTimeout: 5 * time.Second,
	}
}

func (o PoolOptions) withDefaults() PoolOptions {
	def := DefaultPoolOptions()
	if o.MaxConns <= 0 {
		o.MaxConns = def.MaxConns
	}
	if o.MinConns <= 0 || o.MinConns > o.MaxConns {
		o.MinConns = def.MinConns
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = def.MaxIdle
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = def.PingTimeout
	}
	return o
}

// ConnectPostgres opens a pool for dsn and verifies it answers a ping.
func ConnectPostgres(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	opts = opts.withDefaults()
	poolCfg.MaxConns = opts.MaxConns
	poolCfg.MinConns = opts.MinConns
	poolCfg.MaxConnIdleTime = opts.MaxIdle
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", poolCfg.ConnConfig.Host, err)
	}
	return pool, nil
}
