// Command genpred writes a sample forecaster result file into a watch
// directory so the monitor can be exercised end to end locally. Reservoirs
// and level bands match the mock water-level API.
//
// Usage:
//
//	go run ./cmd/genpred -out ./watch -count 6 -lead 2m
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

type band struct {
	id       string
	min, max float64
}

// Same fixtures the mock API serves.
var reservoirs = []band{
	{id: "reservoir_1", min: 100, max: 150},
	{id: "reservoir_2", min: 200, max: 250},
	{id: "reservoir_3", min: 300, max: 350},
}

type resultFile struct {
	Timestamp   string       `json:"timestamp"`
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	ReservoirID    string  `json:"reservoir_id"`
	PredictedLevel float64 `json:"predicted_level"`
	ValidationTime string  `json:"validation_time"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "watch directory to write the result file into")
	count := flag.Int("count", 6, "number of prediction records")
	lead := flag.Duration("lead", 2*time.Minute, "delay before the earliest validation time")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *count < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	now := time.Now().UTC()
	rng := rand.New(rand.NewSource(now.UnixNano()))

	doc := resultFile{
		Timestamp:   now.Format(time.RFC3339),
		Predictions: make([]prediction, 0, *count),
	}
	for i := 0; i < *count; i++ {
		r := reservoirs[i%len(reservoirs)]
		doc.Predictions = append(doc.Predictions, prediction{
			ReservoirID:    r.id,
			PredictedLevel: round2(r.min + rng.Float64()*(r.max-r.min)),
			ValidationTime: now.Add(*lead + time.Duration(i)*30*time.Second).Format(time.RFC3339),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result file: %w", err)
	}

	name := fmt.Sprintf("predictions_%s.json", now.Format("20060102_150405"))
	path := filepath.Join(*outDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("wrote %d predictions to %s\n", *count, path)
	return nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
