// Package retry provides a bounded fixed-delay retry combinator for
// bootstrap-time operations.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Do runs op up to attempts times, sleeping delay between failures. It
// returns nil on the first success, the last error wrapped with the attempt
// count on exhaustion, and ctx.Err() if the context is cancelled while
// waiting. Each failure is logged at warn level.
func Do(ctx context.Context, attempts int, delay time.Duration, logger *slog.Logger, op func(ctx context.Context) error) error {
	if attempts < 1 {
		return fmt.Errorf("retry: attempts must be >= 1, got %d", attempts)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		logger.Warn("attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr,
		)

		if attempt == attempts {
			break
		}
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
