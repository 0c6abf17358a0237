package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/types"
)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func retryableErr() error {
	return types.NewError(types.ErrUpstreamError, "boom").WithRetryable(true)
}

func TestRetryer_SucceedsFirstTry(t *testing.T) {
	r := NewRetryer(fastPolicy(2), zap.NewNop())
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, r.Attempts())
}

func TestRetryer_RetriesThenSucceeds(t *testing.T) {
	r := NewRetryer(fastPolicy(2), nil)
	calls := 0
	got, err := Retry(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", retryableErr()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetryer_Exhausted(t *testing.T) {
	var retried []int
	policy := fastPolicy(2)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}
	r := NewRetryer(policy, nil)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return retryableErr()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
}

func TestRetryer_NonRetryableStopsImmediately(t *testing.T) {
	r := NewRetryer(fastPolicy(5), nil)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return types.NewError(types.ErrInvalidRequest, "bad")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestRetryer_CustomRetryable(t *testing.T) {
	sentinel := errors.New("flaky")
	policy := fastPolicy(1)
	policy.Retryable = func(err error) bool { return errors.Is(err, sentinel) }
	r := NewRetryer(policy, nil)

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestRetryer_ContextCancelledDuringBackoff(t *testing.T) {
	policy := fastPolicy(3)
	policy.InitialDelay = time.Hour
	policy.MaxDelay = time.Hour
	r := NewRetryer(policy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return retryableErr()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryer_Delay(t *testing.T) {
	r := NewRetryer(RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     350 * time.Millisecond,
		Multiplier:   2,
	}, nil)

	assert.Equal(t, 100*time.Millisecond, r.delay(1))
	assert.Equal(t, 200*time.Millisecond, r.delay(2))
	assert.Equal(t, 350*time.Millisecond, r.delay(3))
	assert.Equal(t, 350*time.Millisecond, r.delay(4))
}

func TestRetryer_JitterStaysInBounds(t *testing.T) {
	r := NewRetryer(RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Jitter:       true,
	}, nil)
	for i := 0; i < 100; i++ {
		d := r.delay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestNewRetryer_Normalizes(t *testing.T) {
	r := NewRetryer(RetryPolicy{MaxRetries: -1, Multiplier: 0.5}, nil)
	assert.Equal(t, 1, r.Attempts())
	assert.Equal(t, 200*time.Millisecond, r.policy.InitialDelay)
	assert.Equal(t, 2.0, r.policy.Multiplier)
	assert.NotNil(t, r.policy.Retryable)
}
