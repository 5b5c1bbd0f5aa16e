package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hackgods/gp-clinic-console/internal/app/bootstrap"
	"github.com/hackgods/gp-clinic-console/internal/config"
	"github.com/hackgods/gp-clinic-console/internal/console"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "clinic: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}

	// Logs go to a file so they never interleave with the prompts.
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logger := logging.NewWithWriter(cfg.LogLevel, logFile)
	logger.Info("clinic console starting", "env", cfg.Env, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("close runtime", "error", err)
		}
	}()

	// Bring stale confirmed appointments up to date before anyone looks.
	if n, err := rt.Appointments.RefreshAll(ctx); err != nil {
		logger.Warn("lifecycle refresh failed", "error", err)
	} else if n > 0 {
		logger.Info("marked past appointments attended", "count", n)
	}

	app := console.New(os.Stdin, os.Stdout, console.Deps{
		Accounts:     rt.Accounts,
		Appointments: rt.Appointments,
		Admin:        rt.Admin,
		Reports:      rt.Reports,
		ReportDir:    cfg.ReportDir,
		FeeCents:     cfg.CancellationFeeCents,
		FreeWindow:   cfg.FreeCancellationWindow,
		Logger:       logger,
	})
	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("clinic console stopped")
	return nil
}
