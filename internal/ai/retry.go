package ai

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const maxRetries = 3

// retryBaseDelay is the first backoff step; later steps double it.
var retryBaseDelay = time.Second

type retryableError struct {
	msg string
}

func (e *retryableError) Error() string {
	return e.msg
}

func isRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// withRetry runs fn up to maxRetries times, backing off exponentially with
// jitter between attempts that failed with a retryableError.
func withRetry(ctx context.Context, fn func() (*InferResult, error)) (*InferResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBaseDelay << (attempt - 1)
			backoff += time.Duration(rand.Int63n(int64(backoff)/2 + 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr)
}

// statusError classifies a non-2xx response: 429 and 5xx are retried.
func statusError(provider string, status int, body []byte) error {
	switch {
	case status == 429:
		return &retryableError{msg: fmt.Sprintf("rate limited by %s", provider)}
	case status >= 500:
		return &retryableError{msg: fmt.Sprintf("%s server error (HTTP %d)", provider, status)}
	default:
		return fmt.Errorf("%s returned status %d: %s", provider, status, truncate(string(body), 500))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
