// Package store persists predictions and validations in Postgres.
//
// The service holds a single long-lived connection shared by the file-event
// and scheduler contexts; a mutex serializes access and each logical unit of
// work (one prediction, one validation, one sweep) commits on its own, so a
// failing unit never rolls back unrelated work.
package store

import (
	"errors"
	"time"

	"github.com/couchcryptid/modtrack/internal/domain"
)

// ErrAlreadyValidated is returned by InsertValidation when the prediction
// already has a validation row. The unique index on prediction_id enforces
// the 0-or-1 invariant; callers treat this as "someone beat us to it".
var ErrAlreadyValidated = errors.New("prediction already validated")

// Record is a prediction joined with its validation, if any. Used by the
// reporting layer.
type Record struct {
	Prediction domain.Prediction  `json:"prediction"`
	Validation *domain.Validation `json:"validation,omitempty"`
}

// Summary aggregates validation outcomes over a window.
type Summary struct {
	TotalPredictions int64    `json:"total_predictions"`
	ValidatedCount   int64    `json:"validated_count"`
	SuccessRate      float64  `json:"success_rate"`
	AvgDeviation     *float64 `json:"avg_difference"`
	MaxDeviation     *float64 `json:"max_difference"`
	MinDeviation     *float64 `json:"min_difference"`
}

// ReservoirStat aggregates outcomes for one reservoir over a window.
type ReservoirStat struct {
	ReservoirID     string   `json:"reservoir_id"`
	PredictionCount int64    `json:"prediction_count"`
	AvgDeviation    *float64 `json:"avg_difference"`
}

// StaleCutoff computes the sweep cutoff for a grace window ending at now.
func StaleCutoff(now time.Time, grace time.Duration) time.Time {
	return now.Add(-grace)
}
