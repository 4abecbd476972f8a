// Package domain models reservoir water-level predictions and their validations.
//
// # Data Source
//
// Prediction files are written into a watched directory by an external
// forecasting process. Each file is a JSON document:
//
//	{
//	  "timestamp": "2026-06-01T06:00:00Z",
//	  "predictions": [
//	    {
//	      "reservoir_id": "reservoir_1",
//	      "predicted_level": 120.5,
//	      "validation_time": "2026-06-01T18:00:00Z"
//	    }
//	  ]
//	}
//
// Timestamps are ISO-8601. A trailing "Z" or numeric offset is accepted;
// values without a zone are interpreted as UTC, matching the forecaster's
// output conventions.
//
// # Lifecycle
//
// A Prediction is created once at ingestion and is immutable. At its
// validation time the actual level is fetched from the telemetry API and a
// Validation is recorded with the absolute deviation. A prediction whose
// deadline passes without a measurement is closed out by the stale sweep
// with a placeholder Validation (Source = "stale"). A prediction has at
// most one Validation, whichever path produced it.
//
// # ID Generation
//
// Prediction and Validation IDs are random UUIDs minted at creation time.
// Re-ingesting a file after a crash therefore produces new rows rather than
// conflicting ones; the processed-file ledger is the dedup boundary.
package domain
