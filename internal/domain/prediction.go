package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ValidationSource distinguishes how a validation was produced.
type ValidationSource string

const (
	// SourceMeasured marks a validation backed by a real telemetry reading.
	SourceMeasured ValidationSource = "measured"
	// SourceStale marks a placeholder inserted by the stale sweep for a
	// prediction whose deadline passed without a measurement.
	SourceStale ValidationSource = "stale"
)

// Prediction is a forecasted water level for one reservoir, extracted from a
// result file at ingestion. Immutable once stored.
type Prediction struct {
	ID             string    `json:"id"`
	ReservoirID    string    `json:"reservoir_id"`
	PredictedLevel float64   `json:"predicted_level"`
	PredictionTime time.Time `json:"prediction_timestamp"`
	ValidationTime time.Time `json:"validation_time"`
	FileName       string    `json:"file_name"`
}

// Validation is the outcome of checking a prediction against the observed
// level at its validation time.
type Validation struct {
	ID           string           `json:"id"`
	PredictionID string           `json:"prediction_id"`
	ActualLevel  float64          `json:"actual_level"`
	Deviation    float64          `json:"difference"`
	Source       ValidationSource `json:"source"`
	ValidatedAt  time.Time        `json:"validated_at"`
}

// NewPrediction mints a Prediction with a fresh ID from one parsed record.
func NewPrediction(rec PredictionRecord, predictionTime time.Time, fileName string) Prediction {
	return Prediction{
		ID:             uuid.NewString(),
		ReservoirID:    rec.ReservoirID,
		PredictedLevel: rec.PredictedLevel,
		PredictionTime: predictionTime,
		ValidationTime: rec.ValidationTime,
		FileName:       fileName,
	}
}

// NewMeasuredValidation builds a validation from a telemetry reading,
// computing the absolute deviation from the predicted level.
func NewMeasuredValidation(predictionID string, predicted, actual float64) Validation {
	return Validation{
		ID:           uuid.NewString(),
		PredictionID: predictionID,
		ActualLevel:  actual,
		Deviation:    math.Abs(actual - predicted),
		Source:       SourceMeasured,
		ValidatedAt:  clock.Now().UTC(),
	}
}

// NewStaleValidation builds the placeholder validation recorded when a
// prediction's deadline passed without a measurement. Levels are zero by
// convention; Source tells the two kinds apart.
func NewStaleValidation(predictionID string) Validation {
	return Validation{
		ID:           uuid.NewString(),
		PredictionID: predictionID,
		Source:       SourceStale,
		ValidatedAt:  clock.Now().UTC(),
	}
}
