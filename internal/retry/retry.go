// Package retry implements bounded exponential backoff for RPC calls
// against the chain data source.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/fund-ledger/internal/logging"
)

// RetryConfig bounds the backoff schedule.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig gives the schedule used for chain fetches:
// 1s, 2s, 4s, 8s, capped at 30s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// delay returns the pause before the given attempt's retry.
func (c *RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// RetryResult reports how a retried operation ended.
type RetryResult struct {
	Attempts      int
	Success       bool
	TotalDuration time.Duration
	LastError     error
}

// RetryFunc is the operation under retry. The attempt number starts at 1.
type RetryFunc func(ctx context.Context, attempt int) error

// WithExponentialBackoff runs fn until it succeeds, the attempt budget
// is spent, or the context is cancelled. Cancellation during a backoff
// pause ends the run with the context error as LastError.
func WithExponentialBackoff(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	start := time.Now()
	result := &RetryResult{}

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			break
		}
		result.LastError = err

		if attempt == config.MaxAttempts || ctx.Err() != nil {
			break
		}

		pause := config.delay(attempt)
		logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   pause,
			"error":   err.Error(),
		}).Warn("Operation failed, backing off before retry")

		select {
		case <-time.After(pause):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		}
	}

	result.TotalDuration = time.Since(start)
	if !result.Success && result.LastError == nil {
		result.LastError = ctx.Err()
	}
	return result
}
