package errors

import (
	"context"
	"fmt"
	"time"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
)

// RetryConfig configures fixed-delay retry behavior. Every failure is
// retried the same way: the completion endpoint does not distinguish
// recoverable from unrecoverable failures finely enough to be worth
// classifying, and the attempt budget is small.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first (default: 3)
	Delay       time.Duration // fixed wait between attempts (default: 2s)
}

// DefaultRetryConfig returns the retry policy used for completion calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
	}
}

func (c RetryConfig) normalize() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Delay <= 0 {
		c.Delay = 2 * time.Second
	}
	return c
}

// RetryWithResult executes fn up to config.MaxAttempts times with a fixed
// delay between attempts, honoring ctx cancellation between attempts and
// during the delay. On exhaustion the last error is returned.
func RetryWithResult[T any](ctx context.Context, config RetryConfig, logger logging.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	config = config.normalize()
	logger = logging.OrNop(logger)

	var zero T
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("succeeded on attempt %d/%d", attempt, config.MaxAttempts)
			}
			return result, nil
		}

		lastErr = err
		logger.Warn("attempt %d/%d failed: %v", attempt, config.MaxAttempts, err)

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-time.After(config.Delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		}
	}

	return zero, lastErr
}
