package clients

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	return cfg
}

func TestCalculateBackoffLinear(t *testing.T) {
	r := NewRetrier(nil)

	assert.Equal(t, 1*time.Second, r.CalculateBackoff(1, 0))
	assert.Equal(t, 2*time.Second, r.CalculateBackoff(2, 0))
	assert.Equal(t, 5*time.Second, r.CalculateBackoff(1, 5*time.Second))
	assert.Equal(t, 30*time.Second, r.CalculateBackoff(100, 0))
}

func TestShouldRetry(t *testing.T) {
	r := NewRetrier(nil)

	assert.True(t, r.ShouldRetry(0, errors.New("connection reset")))
	assert.True(t, r.ShouldRetry(http.StatusBadGateway, errors.New("bad gateway")))
	assert.True(t, r.ShouldRetry(http.StatusTooManyRequests, errors.New("slow down")))
	assert.True(t, r.ShouldRetry(599, errors.New("odd 5xx")))
	assert.False(t, r.ShouldRetry(http.StatusOK, errors.New("application error")))
	assert.False(t, r.ShouldRetry(http.StatusBadRequest, errors.New("bad request")))
}

func TestDoRetriesTransientFailures(t *testing.T) {
	r := NewRetrier(fastConfig())
	calls := 0

	res := r.Do(context.Background(), "op", func(ctx context.Context) Outcome {
		calls++
		if calls < 3 {
			return Outcome{Err: errors.New("network down")}
		}
		return Outcome{StatusCode: http.StatusOK}
	})

	require.NoError(t, res.LastError)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, res.Attempts)
}

func TestDoStopsAfterMaxRetries(t *testing.T) {
	r := NewRetrier(fastConfig())
	calls := 0

	res := r.Do(context.Background(), "op", func(ctx context.Context) Outcome {
		calls++
		return Outcome{StatusCode: http.StatusServiceUnavailable, Err: errors.New("unavailable")}
	})

	require.Error(t, res.LastError)
	assert.Contains(t, res.LastError.Error(), "max retries exceeded for op")
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryApplicationErrors(t *testing.T) {
	r := NewRetrier(fastConfig())
	calls := 0
	appErr := errors.New("product not found")

	res := r.Do(context.Background(), "op", func(ctx context.Context) Outcome {
		calls++
		return Outcome{StatusCode: http.StatusOK, Err: appErr}
	})

	assert.ErrorIs(t, res.LastError, appErr)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContextCancellation(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Hour
	r := NewRetrier(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	res := r.Do(ctx, "op", func(ctx context.Context) Outcome {
		cancel()
		return Outcome{Err: errors.New("network down")}
	})

	assert.ErrorIs(t, res.LastError, context.Canceled)
}
