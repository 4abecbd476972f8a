package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/modtrack/internal/adapter/http"
	"github.com/couchcryptid/modtrack/internal/bootstrap"
	"github.com/couchcryptid/modtrack/internal/config"
	"github.com/couchcryptid/modtrack/internal/ingest"
	"github.com/couchcryptid/modtrack/internal/ledger"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/sched"
	"github.com/couchcryptid/modtrack/internal/secrets"
	"github.com/couchcryptid/modtrack/internal/validate"
	"github.com/couchcryptid/modtrack/internal/watch"
)

// appState backs the readiness and status endpoints.
type appState struct {
	ready     atomic.Bool
	scheduler *sched.Scheduler
	processed *ledger.Ledger
}

func (a *appState) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("service not ready")
	}
	return nil
}

func (a *appState) Status() httpadapter.Status {
	return httpadapter.Status{
		PendingJobs:    a.scheduler.Pending(),
		ProcessedFiles: a.processed.Len(),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretStore := secrets.NewFileStore(cfg.SecretsFile)

	deps, err := bootstrap.Bootstrap(ctx, cfg, secretStore, logger, metrics)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	processed, err := ledger.Open(filepath.Join(cfg.WatchDir, cfg.LedgerFile))
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}

	scheduler := sched.New(cfg.TickInterval, clockwork.NewRealClock(), logger, metrics)

	executor := validate.NewExecutor(deps.Store, deps.Telemetry, deps.Events, logger, metrics)
	reconciler := validate.NewReconciler(deps.Store, cfg.StaleGrace, clockwork.NewRealClock(), logger, metrics)

	ingestor := ingest.New(deps.Store, processed, scheduler, executor, deps.Events, logger, metrics)

	detector, err := watch.New(cfg.WatchDir, cfg.LedgerFile, ingestor, logger)
	if err != nil {
		logger.Error("failed to start change detector", "error", err)
		os.Exit(1)
	}

	scheduler.Every("rescan", cfg.ScanInterval, detector.Rescan)
	scheduler.Every("stale sweep", cfg.SweepInterval, reconciler.Sweep)

	state := &appState{scheduler: scheduler, processed: processed}
	srv := httpadapter.NewServer(cfg.HTTPAddr, state, state, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduler loop.
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	// Start filesystem watcher.
	go func() {
		if err := detector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("change detector error", "error", err)
		}
	}()

	// Pick up files that arrived before the watcher was in place.
	if err := detector.Rescan(ctx); err != nil {
		logger.Error("initial rescan failed", "error", err)
	}

	state.ready.Store(true)
	logger.Info("monitor started", "watch_dir", cfg.WatchDir)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := detector.Close(); err != nil {
		logger.Error("change detector close error", "error", err)
	}
	if err := processed.Close(); err != nil {
		logger.Error("ledger close error", "error", err)
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency close error", "error", err)
	}

	logger.Info("shutdown complete")
}
