package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := CallWithRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_RetriesOnceOnTransientError(t *testing.T) {
	calls := 0
	err := CallWithRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCallWithRetry_StopsAfterTwoAttempts(t *testing.T) {
	calls := 0
	err := CallWithRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		return errors.New("still broken")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCallWithRetry_DeadlineMapsToTimeout(t *testing.T) {
	err := CallWithRetry(context.Background(), time.Second, func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCallWithRetry_PriceUnavailableNotRetried(t *testing.T) {
	calls := 0
	err := CallWithRetry(context.Background(), time.Second, func(ctx context.Context) error {
		calls++
		return ErrPriceUnavailable
	})
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetry_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := CallWithRetry(ctx, time.Second, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
