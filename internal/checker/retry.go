package checker

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// Retrying wraps a checker so retryable errors are retried with backoff.
// The final retryable failure is reported as ErrUnavailable.
type Retrying struct {
	Checker Checker
	Retries int
	Log     *slog.Logger

	// Backoff defaults to the package Backoff.
	Backoff func(attempt int) time.Duration
}

func (r *Retrying) Check(ctx context.Context, text string, opts Options) ([]Finding, error) {
	backoff := r.Backoff
	if backoff == nil {
		backoff = Backoff
	}
	attempts := max(r.Retries, 1)

	var findings []Finding
	var lastErr error
	for attempt := range attempts {
		findings, lastErr = r.Checker.Check(ctx, text, opts)
		if lastErr == nil || !IsRetryable(lastErr) {
			break
		}
		if attempt == attempts-1 {
			break
		}
		if r.Log != nil {
			r.Log.Warn("retryable checker error", "attempt", attempt, "error", lastErr)
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return nil, Classify(ctx.Err())
		}
	}
	if lastErr != nil {
		return nil, Classify(lastErr)
	}
	return findings, nil
}
