package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spendbook/internal/cli"
	apphttp "spendbook/internal/http"
	applog "spendbook/internal/log"
	"spendbook/internal/services"
	"spendbook/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)
	cli.EnsureSessionSecret(logger, cfg)

	ctx := context.Background()
	store := cli.InitBackend(ctx, logger, cfg)
	users := storage.NewUserRepository(store.KV)
	expenseRepo := storage.NewExpenseRepository(store.KV, logger)

	hub := apphttp.NewHub(logger)
	opts := services.ExpenseServiceOptions{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Notifier:  hub,
		Logger:    logger,
	}
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Expenses:           services.NewExpenseService(expenseRepo, opts),
		Accounts:           services.NewAccountService(users, cfg.SessionSecret, cfg.SessionTTL, logger),
		Hub:                hub,
		Backend:            store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create server", applog.FieldError, err.Error())
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", applog.FieldError, err.Error())
			}
		}
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Failed to close storage", applog.FieldError, err.Error())
			}
		}
	})

	logger.Info("Starting spendbook server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
