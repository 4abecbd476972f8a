package validate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/modtrack/internal/domain"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/store"
)

// SweepStore closes out stale predictions.
type SweepStore interface {
	SweepStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reconciler periodically inserts placeholder validations for predictions
// whose deadline passed more than the grace window ago with no result, so
// every prediction eventually reaches a terminal state.
type Reconciler struct {
	store   SweepStore
	grace   time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReconciler creates a Reconciler with the given grace window.
func NewReconciler(ss SweepStore, grace time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		store:   ss,
		grace:   grace,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Sweep runs one reconciliation pass. Idempotent: the store's uniqueness
// invariant means a re-run with no new data affects zero rows.
func (r *Reconciler) Sweep(ctx context.Context) error {
	cutoff := store.StaleCutoff(r.clock.Now().UTC(), r.grace)

	n, err := r.store.SweepStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("stale sweep: %w", err)
	}

	if n > 0 {
		r.metrics.ValidationsStored.WithLabelValues(string(domain.SourceStale)).Add(float64(n))
		r.logger.Warn("closed out stale predictions", "count", n, "cutoff", cutoff)
	} else {
		r.logger.Debug("stale sweep found nothing", "cutoff", cutoff)
	}
	return nil
}
