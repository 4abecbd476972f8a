package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/modtrack/internal/config"
)

// Event types published to the validation-events topic.
const (
	EventValidationScheduled = "validation.scheduled"
	EventValidationCompleted = "validation.completed"
)

// Event is the notification published when a validation is scheduled or
// completed, for downstream consumers (alerting, audit).
type Event struct {
	Type           string    `json:"type"`
	PredictionID   string    `json:"prediction_id"`
	ReservoirID    string    `json:"reservoir_id"`
	PredictedLevel float64   `json:"predicted_level"`
	ActualLevel    float64   `json:"actual_level,omitempty"`
	Deviation      float64   `json:"difference,omitempty"`
	At             time.Time `json:"at"`
}

// Writer produces validation events to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaEventsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and writes one event. Events are keyed by prediction ID
// so all events for a prediction stay in partition order.
func (w *Writer) Publish(ctx context.Context, event Event) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Event into a Kafka message.
func serializeToMessage(event Event) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize validation event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.PredictionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "emitted_at", Value: []byte(event.At.Format(time.RFC3339))},
		},
	}, nil
}
