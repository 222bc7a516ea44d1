package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"tailorpress/internal/errors"
)

// retryTransient retries fn with exponential backoff and jitter. Only
// NETWORK_TRANSIENT failures are retried; every other error class
// (auth, rate limit, malformed response, upstream) returns immediately.
// Retry lives here at the pipeline level so the provider adapters stay
// single-shot.
func retryTransient[T any](ctx context.Context, logger *errors.Logger, operation string, maxRetries int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if logger != nil {
				logger.Warn("Retrying transient failure",
					"operation", operation,
					"attempt", attempt,
					"max_retries", maxRetries,
					"error", lastErr.Error())
			}

			// Exponential backoff with jitter to avoid thundering herd
			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			jitter := time.Duration(jitterBig.Int64())
			backoff := min(baseDelay+jitter, 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.Info("Operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		if !errors.IsTransient(err) {
			return zero, err
		}
	}

	if logger != nil {
		logger.LogError(lastErr, "Operation failed after all retry attempts",
			"operation", operation,
			"total_attempts", maxRetries+1)
	}

	return zero, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}
