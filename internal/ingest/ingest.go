// Package ingest turns result files into stored predictions and scheduled
// validation jobs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/modtrack/internal/adapter/kafka"
	"github.com/couchcryptid/modtrack/internal/domain"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/sched"
)

// PredictionStore persists predictions.
type PredictionStore interface {
	InsertPrediction(ctx context.Context, pred domain.Prediction) error
}

// Ledger is the durable processed-file record.
type Ledger interface {
	Contains(name string) bool
	MarkProcessed(name string) error
}

// Scheduler registers one-shot validation jobs.
type Scheduler interface {
	At(name string, when time.Time, fn sched.Job)
}

// Validator runs the deferred validation for one prediction.
type Validator interface {
	Validate(ctx context.Context, predictionID, reservoirID string, predictedLevel float64) error
}

// Publisher emits validation lifecycle events. May be nil.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Ingestor processes one result file end to end: parse, persist each
// prediction, register its validation job, then mark the file in the ledger.
// All callers (file-create events and periodic re-scans) are serialized by
// an internal mutex so the ledger's check-then-mark sequence is atomic per
// file.
type Ingestor struct {
	store     PredictionStore
	ledger    Ledger
	scheduler Scheduler
	validator Validator
	events    Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu sync.Mutex
}

// New creates an Ingestor. events may be nil to disable notifications.
func New(store PredictionStore, ledger Ledger, scheduler Scheduler, validator Validator, events Publisher, logger *slog.Logger, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		store:     store,
		ledger:    ledger,
		scheduler: scheduler,
		validator: validator,
		events:    events,
		logger:    logger,
		metrics:   metrics,
	}
}

// Ingest processes the file at path. Already-ledgered files are skipped
// without error. Any failure aborts the whole file before the ledger mark,
// so a later scan retries it; persistence is therefore at-least-once and the
// ledger mark is the commit point.
func (i *Ingestor) Ingest(ctx context.Context, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	name := filepath.Base(path)
	if i.ledger.Contains(name) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		i.metrics.IngestErrors.Inc()
		return fmt.Errorf("read %s: %w", name, err)
	}

	rf, err := domain.ParseResultFile(data)
	if err != nil {
		i.metrics.IngestErrors.Inc()
		return fmt.Errorf("parse %s: %w", name, err)
	}

	for _, rec := range rf.Predictions {
		pred := domain.NewPrediction(rec, rf.Timestamp, name)

		if err := i.store.InsertPrediction(ctx, pred); err != nil {
			i.metrics.IngestErrors.Inc()
			return fmt.Errorf("persist prediction from %s: %w", name, err)
		}
		i.metrics.PredictionsStored.Inc()

		i.scheduleValidation(ctx, pred)

		i.logger.Info("prediction ingested",
			"prediction_id", pred.ID,
			"reservoir_id", pred.ReservoirID,
			"predicted_level", pred.PredictedLevel,
			"validation_time", pred.ValidationTime,
			"file", name,
		)
	}

	if err := i.ledger.MarkProcessed(name); err != nil {
		// Predictions are stored but unmarked; the next scan re-ingests the
		// file and the validation unique index absorbs the duplicates.
		i.metrics.IngestErrors.Inc()
		return fmt.Errorf("mark %s processed: %w", name, err)
	}

	i.metrics.FilesIngested.Inc()
	i.logger.Info("file ingested", "file", name, "predictions", len(rf.Predictions))
	return nil
}

func (i *Ingestor) scheduleValidation(ctx context.Context, pred domain.Prediction) {
	predID, reservoirID, level := pred.ID, pred.ReservoirID, pred.PredictedLevel
	i.scheduler.At("validate "+predID, pred.ValidationTime, func(jobCtx context.Context) error {
		return i.validator.Validate(jobCtx, predID, reservoirID, level)
	})

	if i.events == nil {
		return
	}
	event := kafka.Event{
		Type:           kafka.EventValidationScheduled,
		PredictionID:   predID,
		ReservoirID:    reservoirID,
		PredictedLevel: level,
		At:             pred.ValidationTime,
	}
	if err := i.events.Publish(ctx, event); err != nil {
		// Notification only; the scheduled job is the source of truth.
		i.logger.Warn("publish scheduled event failed", "prediction_id", predID, "error", err)
	}
}
