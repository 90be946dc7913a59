package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
)

func TestRetryWithResultSucceedsAfterFailures(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, logging.Nop(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 3, calls)
}

func TestRetryWithResultExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	_, err := RetryWithResult(context.Background(), RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}, logging.Nop(), func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls)
}

func TestRetryWithResultStopsOnFirstSuccess(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), DefaultRetryConfig(), logging.Nop(), func(ctx context.Context) (string, error) {
		calls++
		return "", nil // empty result is still a success
	})
	require.NoError(t, err)
	require.Empty(t, result)
	require.Equal(t, 1, calls)
}

func TestRetryWithResultHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryWithResult(ctx, RetryConfig{MaxAttempts: 3, Delay: time.Minute}, logging.Nop(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestRetryConfigNormalizeDefaults(t *testing.T) {
	cfg := RetryConfig{}.normalize()
	require.Equal(t, 3, cfg.MaxAttempts)
	require.Equal(t, 2*time.Second, cfg.Delay)
}
