package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/modtrack/internal/config"
	"github.com/couchcryptid/modtrack/internal/dashboard"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/secrets"
	"github.com/couchcryptid/modtrack/internal/store"
)

func main() {
	cfg, err := config.LoadDashboard()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretStore := secrets.NewFileStore(cfg.SecretsFile)
	dbSecret, err := secretStore.Get(ctx, cfg.DBSecretName)
	if err != nil {
		logger.Error("failed to resolve database secret", "error", err)
		os.Exit(1)
	}

	dsn, err := store.BuildDSN(dbSecret)
	if err != nil {
		logger.Error("invalid database secret", "error", err)
		os.Exit(1)
	}

	db, err := store.Connect(ctx, dsn, cfg.CallTimeout)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	srv := dashboard.NewServer(cfg.HTTPAddr, db, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("dashboard server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("dashboard server shutdown error", "error", err)
	}
	if err := db.Close(shutdownCtx); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
