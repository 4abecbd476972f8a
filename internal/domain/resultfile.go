package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ResultFile is one parsed forecaster output document.
type ResultFile struct {
	Timestamp   time.Time
	Predictions []PredictionRecord
}

// PredictionRecord is a single prediction entry within a result file.
type PredictionRecord struct {
	ReservoirID    string
	PredictedLevel float64
	ValidationTime time.Time
}

// Wire format. Timestamps stay strings here so parse errors can name the
// offending record instead of failing the whole Unmarshal opaquely.
type rawResultFile struct {
	Timestamp   string          `json:"timestamp"`
	Predictions []rawPrediction `json:"predictions"`
}

type rawPrediction struct {
	ReservoirID    string   `json:"reservoir_id"`
	PredictedLevel *float64 `json:"predicted_level"`
	ValidationTime string   `json:"validation_time"`
}

// ParseResultFile decodes and validates a forecaster result document. Any
// malformed record fails the whole file; the caller must not persist partial
// contents.
func ParseResultFile(data []byte) (ResultFile, error) {
	var raw rawResultFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return ResultFile{}, fmt.Errorf("decode result file: %w", err)
	}

	if raw.Timestamp == "" {
		return ResultFile{}, errors.New("result file missing timestamp")
	}
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return ResultFile{}, fmt.Errorf("result file timestamp: %w", err)
	}

	if len(raw.Predictions) == 0 {
		return ResultFile{}, errors.New("result file has no predictions")
	}

	out := ResultFile{
		Timestamp:   ts,
		Predictions: make([]PredictionRecord, 0, len(raw.Predictions)),
	}
	for i, p := range raw.Predictions {
		if p.ReservoirID == "" {
			return ResultFile{}, fmt.Errorf("prediction %d: missing reservoir_id", i)
		}
		if p.PredictedLevel == nil {
			return ResultFile{}, fmt.Errorf("prediction %d: missing predicted_level", i)
		}
		if p.ValidationTime == "" {
			return ResultFile{}, fmt.Errorf("prediction %d: missing validation_time", i)
		}
		vt, err := ParseTimestamp(p.ValidationTime)
		if err != nil {
			return ResultFile{}, fmt.Errorf("prediction %d: validation_time: %w", i, err)
		}
		out.Predictions = append(out.Predictions, PredictionRecord{
			ReservoirID:    p.ReservoirID,
			PredictedLevel: *p.PredictedLevel,
			ValidationTime: vt,
		})
	}
	return out, nil
}

// timestampLayouts are tried in order. The forecaster emits RFC 3339 with a
// trailing Z; zone-less values are treated as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp as produced by the forecaster
// and the telemetry API, normalized to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
