package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries      int           // Extra attempts after the first one
	InitialBackoff  time.Duration // Wait before the first retry, grows linearly per attempt
	MaxBackoff      time.Duration // Upper bound on any single wait
	RetryableErrors []int         // HTTP status codes to retry
}

// DefaultRetryConfig returns the supplier API retry policy: two extra
// attempts with a linear 1s × attempt backoff.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		RetryableErrors: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

// RetryResult contains the result of a retry operation
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
	RetryAfter    time.Duration // From Retry-After header if present
}

// Retrier handles retry logic with backoff
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

// ShouldRetry determines if an error should be retried
func (r *Retrier) ShouldRetry(statusCode int, err error) bool {
	// Always retry on network errors
	if err != nil && statusCode == 0 {
		return true
	}

	if statusCode >= 500 {
		return true
	}
	for _, code := range r.config.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// CalculateBackoff returns the wait before the given retry (1-based)
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	// Use Retry-After header if provided
	if retryAfter > 0 {
		return min(retryAfter, r.config.MaxBackoff)
	}

	backoff := r.config.InitialBackoff * time.Duration(attempt)
	return min(backoff, r.config.MaxBackoff)
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// Try parsing as seconds
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return 0
}

// Outcome is what a single attempt reports back to the retrier
type Outcome struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) Outcome

// Do executes a function with retry logic. Only network errors and the
// configured status codes are retried; anything else is returned as is.
func (r *Retrier) Do(ctx context.Context, operation string, fn RetryableFunc) *RetryResult {
	result := &RetryResult{}
	startTime := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		out := fn(ctx)
		result.LastError = out.Err
		result.RetryAfter = out.RetryAfter

		// Success
		if out.Err == nil {
			result.TotalDuration = time.Since(startTime)
			return result
		}

		// Check if we should retry
		if !r.ShouldRetry(out.StatusCode, out.Err) {
			result.TotalDuration = time.Since(startTime)
			return result
		}

		// Check if we've exhausted retries
		if attempt >= r.config.MaxRetries {
			result.LastError = fmt.Errorf("max retries exceeded for %s: %w", operation, out.Err)
			result.TotalDuration = time.Since(startTime)
			return result
		}

		backoff := r.CalculateBackoff(attempt+1, result.RetryAfter)

		// Wait with context
		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		case <-time.After(backoff):
			// Continue to next attempt
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}
