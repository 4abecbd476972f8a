// Package validate runs deferred validation checks and the stale sweep.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/modtrack/internal/adapter/kafka"
	"github.com/couchcryptid/modtrack/internal/domain"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/store"
	"github.com/couchcryptid/modtrack/internal/telemetry"
)

// ValidationStore persists validations.
type ValidationStore interface {
	InsertValidation(ctx context.Context, v domain.Validation) error
}

// Telemetry provides the observed water level.
type Telemetry interface {
	GetLevel(ctx context.Context, reservoirID string) (telemetry.Reading, error)
}

// Publisher emits validation lifecycle events. May be nil.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Executor performs one scheduled validation: fetch the actual level,
// compute the deviation, persist the result.
type Executor struct {
	store     ValidationStore
	telemetry Telemetry
	events    Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewExecutor creates an Executor. events may be nil.
func NewExecutor(vs ValidationStore, tel Telemetry, events Publisher, logger *slog.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{
		store:     vs,
		telemetry: tel,
		events:    events,
		logger:    logger,
		metrics:   metrics,
	}
}

// Validate runs when a prediction's validation time arrives. Failures are
// logged and counted but not retried here; the stale sweep is the safety
// net. A prediction that already has a validation is left alone.
func (e *Executor) Validate(ctx context.Context, predictionID, reservoirID string, predictedLevel float64) error {
	reading, err := e.telemetry.GetLevel(ctx, reservoirID)
	if err != nil {
		e.metrics.ValidationErrors.Inc()
		e.logger.Error("telemetry fetch failed, deferring to stale sweep",
			"prediction_id", predictionID,
			"reservoir_id", reservoirID,
			"error", err,
		)
		return fmt.Errorf("validate %s: %w", predictionID, err)
	}

	v := domain.NewMeasuredValidation(predictionID, predictedLevel, reading.WaterLevel)

	if err := e.store.InsertValidation(ctx, v); err != nil {
		if errors.Is(err, store.ErrAlreadyValidated) {
			e.logger.Info("prediction already validated", "prediction_id", predictionID)
			return nil
		}
		e.metrics.ValidationErrors.Inc()
		e.logger.Error("persist validation failed, deferring to stale sweep",
			"prediction_id", predictionID,
			"reservoir_id", reservoirID,
			"error", err,
		)
		return fmt.Errorf("validate %s: %w", predictionID, err)
	}

	e.metrics.ValidationsStored.WithLabelValues(string(domain.SourceMeasured)).Inc()
	e.logger.Info("prediction validated",
		"prediction_id", predictionID,
		"reservoir_id", reservoirID,
		"predicted_level", predictedLevel,
		"actual_level", v.ActualLevel,
		"difference", v.Deviation,
	)

	e.publishCompleted(ctx, v, reservoirID, predictedLevel)
	return nil
}

func (e *Executor) publishCompleted(ctx context.Context, v domain.Validation, reservoirID string, predictedLevel float64) {
	if e.events == nil {
		return
	}
	event := kafka.Event{
		Type:           kafka.EventValidationCompleted,
		PredictionID:   v.PredictionID,
		ReservoirID:    reservoirID,
		PredictedLevel: predictedLevel,
		ActualLevel:    v.ActualLevel,
		Deviation:      v.Deviation,
		At:             v.ValidatedAt,
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Warn("publish completed event failed", "prediction_id", v.PredictionID, "error", err)
	}
}
