package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendbook/internal/cli"
	applog "spendbook/internal/log"
	"spendbook/internal/storage"
	"spendbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting spendbook-worker")

	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the mirror only sees seeded data")
	}

	store := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if store.Cleanup != nil {
			_ = store.Cleanup()
		}
	}()

	mirror := cli.InitMirror(context.Background(), logger, cfg)

	w := worker.NewMirrorWorker(
		storage.NewExpenseRepository(store.KV, logger),
		storage.NewUserRepository(store.KV),
		mirror,
		logger,
	)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, ctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		return w.RunReconcile(ctx, cfg.MirrorInterval)
	})

	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeExpenseEvents(ctx, w.HandleEvent)
		})
	} else {
		logger.Info("No broker, mirroring on the reconcile interval only", "interval", cfg.MirrorInterval.String())
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err.Error())
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Worker stopped gracefully")
}
