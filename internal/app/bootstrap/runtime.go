// Package bootstrap wires the store, slot locker and services from config for
// the binaries under cmd/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/gp-clinic-console/internal/account"
	"github.com/hackgods/gp-clinic-console/internal/admin"
	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/config"
	redisclient "github.com/hackgods/gp-clinic-console/internal/redis"
	"github.com/hackgods/gp-clinic-console/internal/report"
	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

// Runtime holds everything a binary needs. Close releases the store and the
// redis client.
type Runtime struct {
	Config       config.Config
	Backend      store.Backend
	Repo         *appointment.Repository
	Redis        *redis.Client // nil when slot locking is in-process
	Accounts     *account.Service
	Appointments *appointment.Service
	Admin        *admin.Service
	Reports      *report.Generator

	closeStore func()
}

func Build(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Default()
	}

	backend, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open store: %w", err)
	}

	locker, rdb, err := redisclient.NewLocker(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
		LockTTL:  cfg.LockTTL,
	})
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("bootstrap: connect redis: %w", err)
	}
	if rdb == nil {
		logger.Info("REDIS_ADDR not set, using in-process slot lock")
	}

	return NewRuntime(cfg, backend, locker, rdb, closeStore, logger), nil
}

// NewRuntime builds the services over an already opened backend.
func NewRuntime(cfg config.Config, backend store.Backend, locker redisclient.Locker, rdb *redis.Client, closeStore func(), logger *logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.Default()
	}
	if closeStore == nil {
		closeStore = func() {}
	}
	repo := appointment.NewRepository(backend, logger)
	appts := appointment.NewService(repo, locker, cfg, logger)
	return &Runtime{
		Config:       cfg,
		Backend:      backend,
		Repo:         repo,
		Redis:        rdb,
		Accounts:     account.NewService(repo, cfg.AllowedEmailDomains, logger),
		Appointments: appts,
		Admin:        admin.NewService(repo, appts, logger),
		Reports:      report.NewGenerator(repo, appts.Location(), logger),
		closeStore:   closeStore,
	}
}

func (r *Runtime) Close() error {
	r.closeStore()
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}
