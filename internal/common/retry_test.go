package common_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/egorv/bankflow/internal/common"
	"github.com/egorv/bankflow/internal/service"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestWithRetryTransientFailure(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := common.WithRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, fastRetry(5))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	ctx := context.Background()

	calls := 0
	permanent := &common.RetryableError{Err: errors.New("bad credentials"), Retryable: false}
	err := common.WithRetry(ctx, func() error {
		calls++
		return permanent
	}, fastRetry(5))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, err, common.ErrMaxRetries)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := common.WithRetry(ctx, func() error {
		calls++
		return errors.New("still broken")
	}, fastRetry(3))
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 3, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "rate limit",
			err:  common.ErrRateLimit,
			want: true,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: true,
		},
		{
			name: "marked retryable",
			err:  &common.RetryableError{Err: errors.New("transient"), Retryable: true},
			want: true,
		},
		{
			name: "marked permanent",
			err:  &common.RetryableError{Err: errors.New("bad request"), Retryable: false},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("whatever"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, common.IsRetryable(tt.err))
		})
	}
}
