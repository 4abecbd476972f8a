package validate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/modtrack/internal/adapter/kafka"
	"github.com/couchcryptid/modtrack/internal/domain"
	"github.com/couchcryptid/modtrack/internal/observability"
	"github.com/couchcryptid/modtrack/internal/store"
	"github.com/couchcryptid/modtrack/internal/telemetry"
	"github.com/couchcryptid/modtrack/internal/validate"
)

// --- fakes ---

type fakeValidationStore struct {
	validations []domain.Validation
	err         error
}

func (f *fakeValidationStore) InsertValidation(_ context.Context, v domain.Validation) error {
	if f.err != nil {
		return f.err
	}
	f.validations = append(f.validations, v)
	return nil
}

type fakeTelemetry struct {
	level float64
	err   error
}

func (f *fakeTelemetry) GetLevel(_ context.Context, reservoirID string) (telemetry.Reading, error) {
	if f.err != nil {
		return telemetry.Reading{}, f.err
	}
	return telemetry.Reading{ReservoirID: reservoirID, WaterLevel: f.level, Unit: "meters"}, nil
}

type fakePublisher struct {
	events []kafka.Event
}

func (f *fakePublisher) Publish(_ context.Context, event kafka.Event) error {
	f.events = append(f.events, event)
	return nil
}

type fakeSweepStore struct {
	cutoffs  []time.Time
	affected int64
	err      error
}

func (f *fakeSweepStore) SweepStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	return f.affected, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- executor tests ---

func TestExecutor_Validate_StoresDeviation(t *testing.T) {
	vs := &fakeValidationStore{}
	tel := &fakeTelemetry{level: 117.5}
	pub := &fakePublisher{}
	e := validate.NewExecutor(vs, tel, pub, discardLogger(), observability.NewMetricsForTesting())

	err := e.Validate(context.Background(), "pred-1", "reservoir_1", 120.0)
	require.NoError(t, err)

	require.Len(t, vs.validations, 1)
	v := vs.validations[0]
	assert.Equal(t, "pred-1", v.PredictionID)
	assert.InEpsilon(t, 117.5, v.ActualLevel, 0.0001)
	assert.InEpsilon(t, 2.5, v.Deviation, 0.0001)
	assert.Equal(t, domain.SourceMeasured, v.Source)

	require.Len(t, pub.events, 1)
	assert.Equal(t, kafka.EventValidationCompleted, pub.events[0].Type)
	assert.InEpsilon(t, 2.5, pub.events[0].Deviation, 0.0001)
}

func TestExecutor_Validate_TelemetryFailure(t *testing.T) {
	vs := &fakeValidationStore{}
	tel := &fakeTelemetry{err: errors.New("connection refused")}
	e := validate.NewExecutor(vs, tel, nil, discardLogger(), observability.NewMetricsForTesting())

	err := e.Validate(context.Background(), "pred-1", "reservoir_1", 120.0)
	require.Error(t, err)
	assert.Empty(t, vs.validations, "nothing persisted on telemetry failure")
}

func TestExecutor_Validate_StoreFailure(t *testing.T) {
	vs := &fakeValidationStore{err: errors.New("deadlock")}
	tel := &fakeTelemetry{level: 100}
	e := validate.NewExecutor(vs, tel, nil, discardLogger(), observability.NewMetricsForTesting())

	err := e.Validate(context.Background(), "pred-1", "reservoir_1", 120.0)
	require.Error(t, err)
}

func TestExecutor_Validate_AlreadyValidatedIsNotAnError(t *testing.T) {
	vs := &fakeValidationStore{err: store.ErrAlreadyValidated}
	tel := &fakeTelemetry{level: 100}
	pub := &fakePublisher{}
	e := validate.NewExecutor(vs, tel, pub, discardLogger(), observability.NewMetricsForTesting())

	err := e.Validate(context.Background(), "pred-1", "reservoir_1", 120.0)
	require.NoError(t, err)
	assert.Empty(t, pub.events, "no completed event for a duplicate")
}

// --- reconciler tests ---

func TestReconciler_Sweep_UsesGraceCutoff(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	fc := clockwork.NewFakeClockAt(now)
	ss := &fakeSweepStore{affected: 3}

	r := validate.NewReconciler(ss, 5*time.Minute, fc, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, r.Sweep(context.Background()))

	require.Len(t, ss.cutoffs, 1)
	assert.Equal(t, now.Add(-5*time.Minute), ss.cutoffs[0])
}

func TestReconciler_Sweep_PropagatesStoreError(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Now())
	ss := &fakeSweepStore{err: errors.New("server closed the connection")}

	r := validate.NewReconciler(ss, 5*time.Minute, fc, discardLogger(), observability.NewMetricsForTesting())
	err := r.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale sweep")
}

func TestReconciler_Sweep_ZeroAffectedIsFine(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Now())
	ss := &fakeSweepStore{affected: 0}

	r := validate.NewReconciler(ss, 5*time.Minute, fc, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, r.Sweep(context.Background()))
	require.NoError(t, r.Sweep(context.Background()))
	assert.Len(t, ss.cutoffs, 2)
}
