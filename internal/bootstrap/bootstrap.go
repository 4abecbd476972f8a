// Package bootstrap resolves credentials and constructs the long-lived
// storage, telemetry, and eventing clients with bounded retry. None of the
// watch or scheduling machinery starts until every dependency is up.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/modtrack/internal/adapter/kafka"
	"github.com/couchcryptid/modtrack/internal/config"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/retry"
	"github.com/couchcryptid/modtrack/internal/secrets"
	"github.com/couchcryptid/modtrack/internal/store"
	"github.com/couchcryptid/modtrack/internal/telemetry"
)

// Deps holds the shared handles reused by every later component.
type Deps struct {
	Store     *store.Postgres
	Telemetry *telemetry.Client
	Events    *kafka.Writer
}

// Close releases every handle. Errors are logged by the caller via the
// returned joined error message.
func (d *Deps) Close(ctx context.Context) error {
	var firstErr error
	if d.Store != nil {
		if err := d.Store.Close(ctx); err != nil {
			firstErr = err
		}
	}
	if d.Events != nil {
		if err := d.Events.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Bootstrap initializes all dependencies, retrying the whole sequence up to
// cfg.BootstrapAttempts times with cfg.BootstrapDelay between failures.
// After exhaustion the error is fatal: the process must exit rather than
// watch files with half-initialized state.
func Bootstrap(ctx context.Context, cfg *config.Config, secretStore secrets.Store, logger *slog.Logger, metrics *observability.Metrics) (*Deps, error) {
	var deps *Deps

	err := retry.Do(ctx, cfg.BootstrapAttempts, cfg.BootstrapDelay, logger, func(ctx context.Context) error {
		d, err := initialize(ctx, cfg, secretStore, logger, metrics)
		if err != nil {
			return err
		}
		deps = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("all dependencies initialized")
	return deps, nil
}

func initialize(ctx context.Context, cfg *config.Config, secretStore secrets.Store, logger *slog.Logger, metrics *observability.Metrics) (*Deps, error) {
	dbSecret, err := secretStore.Get(ctx, cfg.DBSecretName)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.DBSecretName, err)
	}
	apiSecret, err := secretStore.Get(ctx, cfg.APISecretName)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", cfg.APISecretName, err)
	}
	if apiSecret["api_url"] == "" || apiSecret["api_key"] == "" {
		return nil, fmt.Errorf("secret %s missing api_url or api_key", cfg.APISecretName)
	}

	dsn, err := store.BuildDSN(dbSecret)
	if err != nil {
		return nil, err
	}

	st, err := store.Connect(ctx, dsn, cfg.CallTimeout)
	if err != nil {
		return nil, err
	}

	return &Deps{
		Store:     st,
		Telemetry: telemetry.NewClient(apiSecret["api_url"], apiSecret["api_key"], cfg.CallTimeout, metrics, logger),
		Events:    kafka.NewWriter(cfg, logger),
	}, nil
}
