// Package telemetry fetches observed reservoir water levels from the
// external measurement API.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/modtrack/internal/observability"
)

// Reading is one observed water level.
type Reading struct {
	ReservoirID string
	WaterLevel  float64
	Timestamp   string
	Unit        string
}

// Client calls the water-level API with bearer-token auth.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a telemetry client. timeout bounds every request so a
// hung API cannot stall a validation job past its slot.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// GetLevel fetches the current water level for a reservoir.
func (c *Client) GetLevel(ctx context.Context, reservoirID string) (Reading, error) {
	u := fmt.Sprintf("%s/water-level/%s", c.baseURL, url.PathEscape(reservoirID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Reading{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.TelemetryRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Reading{}, fmt.Errorf("water-level request for %s: %w", reservoirID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Reading{}, fmt.Errorf("water-level API error for %s: status %d: %s", reservoirID, resp.StatusCode, body)
	}

	var wire response
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return Reading{}, fmt.Errorf("decode water-level response: %w", err)
	}
	if wire.WaterLevel == nil {
		return Reading{}, fmt.Errorf("water-level response for %s missing water_level", reservoirID)
	}

	return Reading{
		ReservoirID: wire.ReservoirID,
		WaterLevel:  *wire.WaterLevel,
		Timestamp:   wire.Timestamp,
		Unit:        wire.Unit,
	}, nil
}

// Water-level API response shape.
type response struct {
	ReservoirID string   `json:"reservoir_id"`
	Name        string   `json:"name"`
	Timestamp   string   `json:"timestamp"`
	WaterLevel  *float64 `json:"water_level"`
	Unit        string   `json:"unit"`
}
