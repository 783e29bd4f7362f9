package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fast = Config{
	MaxRetries: 3,
	BaseDelay:  5 * time.Millisecond,
	MaxDelay:   20 * time.Millisecond,
	Timeout:    time.Second,
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	values, err := WithRetry(context.Background(), fast, func(ctx context.Context) ([][]interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("503 backend error")
		}
		return [][]interface{}{{"S/L."}, {"1"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	cfg := fast
	cfg.MaxRetries = 2

	calls := 0
	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("persistent failure")
	})
	require.ErrorContains(t, err, "operation failed after 3 attempts")
	require.Equal(t, 3, calls)

	cfg.Name = "sheets.read"
	cfg.MaxRetries = 0
	_, err = WithRetry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, errors.New("persistent failure")
	})
	require.EqualError(t, err, "sheets.read failed after 1 attempts: persistent failure")
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	notFound := errors.New("Unable to parse range: 'Missing'!A1:Z")

	calls := 0
	_, err := WithRetry(context.Background(), fast, func(ctx context.Context) (string, error) {
		calls++
		return "", Permanent(notFound)
	})
	require.ErrorIs(t, err, notFound)
	require.False(t, IsPermanent(err))
	require.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	require.NoError(t, Permanent(nil))
	require.True(t, IsPermanent(Permanent(errors.New("bad request"))))
}

func TestWithRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast
	cfg.MaxRetries = 5

	calls := 0
	_, err := WithRetry(ctx, cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return "", errors.New("failure")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.LessOrEqual(t, calls, 3)
}

func TestWithRetryAppliesAttemptTimeout(t *testing.T) {
	cfg := Config{MaxRetries: 0, Timeout: 10 * time.Millisecond}

	_, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithRetryWithoutTimeout(t *testing.T) {
	cfg := Config{MaxRetries: 0}

	ok, err := WithRetry(context.Background(), cfg, func(ctx context.Context) (bool, error) {
		_, hasDeadline := ctx.Deadline()
		return !hasDeadline, nil
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCalculateBackoffDelay(t *testing.T) {
	base := 10 * time.Millisecond
	max := 100 * time.Millisecond

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{0, 5 * time.Millisecond, 15 * time.Millisecond},
		{1, 10 * time.Millisecond, 30 * time.Millisecond},
		{2, 20 * time.Millisecond, 60 * time.Millisecond},
		{3, 40 * time.Millisecond, 100 * time.Millisecond},
		{4, 50 * time.Millisecond, 100 * time.Millisecond},
		{35, 50 * time.Millisecond, 100 * time.Millisecond},
		{100, 50 * time.Millisecond, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		for i := 0; i < 10; i++ {
			got := calculateBackoffDelay(tt.attempt, base, max)
			require.GreaterOrEqual(t, got, tt.min, "attempt %d", tt.attempt)
			require.LessOrEqual(t, got, tt.max, "attempt %d", tt.attempt)
		}
	}
}
