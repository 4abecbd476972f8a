package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, time.June, 1, 18, 0, 0, 0, time.UTC)
	event := Event{
		Type:           EventValidationCompleted,
		PredictionID:   "pred-1",
		ReservoirID:    "reservoir_1",
		PredictedLevel: 120.0,
		ActualLevel:    117.5,
		Deviation:      2.5,
		At:             now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("pred-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"type":"validation.completed"`)
	assert.Contains(t, string(msg.Value), `"reservoir_id":"reservoir_1"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(EventValidationCompleted), msg.Headers[0].Value)
	assert.Equal(t, "emitted_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_ScheduledOmitsActuals(t *testing.T) {
	msg, err := serializeToMessage(Event{
		Type:           EventValidationScheduled,
		PredictionID:   "pred-2",
		ReservoirID:    "reservoir_2",
		PredictedLevel: 220.0,
		At:             time.Now(),
	})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "actual_level")
	assert.NotContains(t, string(msg.Value), "difference")
}
