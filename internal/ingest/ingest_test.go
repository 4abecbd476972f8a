package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/modtrack/internal/adapter/kafka"
	"github.com/couchcryptid/modtrack/internal/domain"
	"github.com/couchcryptid/modtrack/internal/ingest"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/sched"
)

// --- fakes ---

type fakeStore struct {
	predictions []domain.Prediction
	failAfter   int // insert N succeeds, N+1 fails; -1 never fails
}

func (f *fakeStore) InsertPrediction(_ context.Context, pred domain.Prediction) error {
	if f.failAfter >= 0 && len(f.predictions) >= f.failAfter {
		return errors.New("connection reset")
	}
	f.predictions = append(f.predictions, pred)
	return nil
}

type fakeLedger struct {
	marked  map[string]struct{}
	markErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{marked: map[string]struct{}{}}
}

func (f *fakeLedger) Contains(name string) bool {
	_, ok := f.marked[name]
	return ok
}

func (f *fakeLedger) MarkProcessed(name string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked[name] = struct{}{}
	return nil
}

type scheduledJob struct {
	name string
	when time.Time
	fn   sched.Job
}

type fakeScheduler struct {
	jobs []scheduledJob
}

func (f *fakeScheduler) At(name string, when time.Time, fn sched.Job) {
	f.jobs = append(f.jobs, scheduledJob{name: name, when: when, fn: fn})
}

type fakeValidator struct {
	calls []string
}

func (f *fakeValidator) Validate(_ context.Context, predictionID, _ string, _ float64) error {
	f.calls = append(f.calls, predictionID)
	return nil
}

type fakePublisher struct {
	events []kafka.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event kafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

// --- harness ---

type harness struct {
	ingestor  *ingest.Ingestor
	store     *fakeStore
	ledger    *fakeLedger
	scheduler *fakeScheduler
	validator *fakeValidator
	events    *fakePublisher
	dir       string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     &fakeStore{failAfter: -1},
		ledger:    newFakeLedger(),
		scheduler: &fakeScheduler{},
		validator: &fakeValidator{},
		events:    &fakePublisher{},
		dir:       t.TempDir(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.ingestor = ingest.New(h.store, h.ledger, h.scheduler, h.validator, h.events, logger, observability.NewMetricsForTesting())
	return h
}

func (h *harness) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const twoPredictionFile = `{
	"timestamp": "2026-06-01T06:00:00Z",
	"predictions": [
		{"reservoir_id": "reservoir_1", "predicted_level": 120.0, "validation_time": "2026-06-01T18:00:01Z"},
		{"reservoir_id": "reservoir_2", "predicted_level": 220.0, "validation_time": "2026-06-01T18:00:02Z"}
	]
}`

// --- tests ---

func TestIngest_PersistsAndSchedulesEachRecord(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)

	require.NoError(t, h.ingestor.Ingest(context.Background(), path))

	require.Len(t, h.store.predictions, 2)
	assert.Equal(t, "reservoir_1", h.store.predictions[0].ReservoirID)
	assert.Equal(t, "reservoir_2", h.store.predictions[1].ReservoirID)
	assert.Equal(t, "results_0601.json", h.store.predictions[0].FileName)

	require.Len(t, h.scheduler.jobs, 2)
	assert.Equal(t, h.store.predictions[0].ValidationTime, h.scheduler.jobs[0].when)
	assert.Equal(t, h.store.predictions[1].ValidationTime, h.scheduler.jobs[1].when)

	assert.True(t, h.ledger.Contains("results_0601.json"))

	require.Len(t, h.events.events, 2)
	assert.Equal(t, kafka.EventValidationScheduled, h.events.events[0].Type)
	assert.Equal(t, h.store.predictions[0].ID, h.events.events[0].PredictionID)
}

func TestIngest_ScheduledJobInvokesValidator(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)

	require.NoError(t, h.ingestor.Ingest(context.Background(), path))
	require.Len(t, h.scheduler.jobs, 2)

	require.NoError(t, h.scheduler.jobs[0].fn(context.Background()))
	assert.Equal(t, []string{h.store.predictions[0].ID}, h.validator.calls)
}

func TestIngest_LedgeredFileSkipped(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)
	require.NoError(t, h.ledger.MarkProcessed("results_0601.json"))

	require.NoError(t, h.ingestor.Ingest(context.Background(), path))

	assert.Empty(t, h.store.predictions)
	assert.Empty(t, h.scheduler.jobs)
}

func TestIngest_SecondIngestIsNoOp(t *testing.T) {
	h := newHarness(t)
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)

	require.NoError(t, h.ingestor.Ingest(context.Background(), path))
	require.NoError(t, h.ingestor.Ingest(context.Background(), path))

	assert.Len(t, h.store.predictions, 2)
	assert.Len(t, h.scheduler.jobs, 2)
}

func TestIngest_MalformedFileLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "not json at all"},
		{"bad timestamp", `{"timestamp":"06/01/2026","predictions":[{"reservoir_id":"r","predicted_level":1,"validation_time":"2026-06-01T18:00:00Z"}]}`},
		{"bad validation time", `{"timestamp":"2026-06-01T06:00:00Z","predictions":[{"reservoir_id":"r","predicted_level":1,"validation_time":"6pm"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			path := h.writeFile(t, "bad.json", tt.content)

			err := h.ingestor.Ingest(context.Background(), path)
			require.Error(t, err)

			assert.Empty(t, h.store.predictions, "no predictions persisted")
			assert.Empty(t, h.scheduler.jobs, "no jobs registered")
			assert.False(t, h.ledger.Contains("bad.json"), "file not marked processed")
		})
	}
}

func TestIngest_MissingFile(t *testing.T) {
	h := newHarness(t)
	err := h.ingestor.Ingest(context.Background(), filepath.Join(h.dir, "gone.json"))
	require.Error(t, err)
	assert.False(t, h.ledger.Contains("gone.json"))
}

func TestIngest_StoreFailureAbortsFileBeforeLedgerMark(t *testing.T) {
	h := newHarness(t)
	h.store.failAfter = 1 // second insert fails
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)

	err := h.ingestor.Ingest(context.Background(), path)
	require.Error(t, err)

	assert.Len(t, h.store.predictions, 1, "first record was persisted")
	assert.False(t, h.ledger.Contains("results_0601.json"), "partial ingestion must not mark the file")

	// A retry after the store recovers completes the file.
	h.store.failAfter = -1
	require.NoError(t, h.ingestor.Ingest(context.Background(), path))
	assert.True(t, h.ledger.Contains("results_0601.json"))
}

func TestIngest_LedgerMarkFailure(t *testing.T) {
	h := newHarness(t)
	h.ledger.markErr = errors.New("disk full")
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)

	err := h.ingestor.Ingest(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark")
}

func TestIngest_PublishFailureDoesNotAbortFile(t *testing.T) {
	h := newHarness(t)
	h.events.err = errors.New("broker down")
	path := h.writeFile(t, "results_0601.json", twoPredictionFile)

	require.NoError(t, h.ingestor.Ingest(context.Background(), path))
	assert.True(t, h.ledger.Contains("results_0601.json"))
	assert.Len(t, h.scheduler.jobs, 2)
}

func TestIngest_NilPublisher(t *testing.T) {
	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ingestor := ingest.New(h.store, h.ledger, h.scheduler, h.validator, nil, logger, observability.NewMetricsForTesting())

	path := h.writeFile(t, "results_0601.json", twoPredictionFile)
	require.NoError(t, ingestor.Ingest(context.Background(), path))
	assert.Len(t, h.store.predictions, 2)
}
