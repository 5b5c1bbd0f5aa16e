package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hackgods/gp-clinic-console/internal/config"
	"github.com/hackgods/gp-clinic-console/internal/db"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

// Open builds the backend selected by cfg.StoreBackend. The returned close
// function releases any connections and is safe to call once.
func Open(ctx context.Context, cfg config.Config, logger *logging.Logger) (Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemoryBackend(), func() {}, nil

	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns})
		if err != nil {
			return nil, nil, err
		}
		backend := NewPostgresBackend(pool)
		if err := backend.EnsureSchema(pgCtx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("using postgres store")
		return backend, pool.Close, nil

	case config.BackendCSV, "":
		backend, err := NewCSVBackend(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using csv store", "dir", cfg.DataDir)
		return backend, func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
