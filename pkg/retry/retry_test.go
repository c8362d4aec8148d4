package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}, opts...)...)
}

func TestRetrier_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBoom)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(2)).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errBoom)
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 2, calls)
}

func TestRetrier_PlainErrorsAreNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetryIfAndPermanent(t *testing.T) {
	calls := 0
	retryer := fast(WithMaxAttempts(5), WithRetryIf(func(err error) bool { return errors.Is(err, errBoom) }))
	err := retryer.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 2 {
			return Permanent(errors.New("stop"))
		}
		return errBoom
	})
	assert.EqualError(t, err, "stop")
	assert.Equal(t, 2, calls)
}

func TestRetrier_OnRetryAndWith(t *testing.T) {
	var attempts []int
	base := fast(WithMaxAttempts(3))
	r := base.With(WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		attempts = append(attempts, attempt)
	}))

	_ = r.Do(context.Background(), func(context.Context) error { return Retryable(errBoom) })
	assert.Equal(t, []int{1, 2}, attempts)
	assert.Nil(t, base.config.OnRetry)
}

func TestRetrier_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestRetrier_CancelDuringBackoffReturnsBareError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(WithMaxAttempts(5), WithInitialDelay(time.Hour), WithMaxDelay(time.Hour), WithJitter(0))

	calls := 0
	err := r.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return Retryable(errBoom)
	})
	assert.Equal(t, errBoom, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 1, calls)
}

func TestSinkRetrier_RetriesPlainErrors(t *testing.T) {
	calls := 0
	err := SinkRetrier().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("unavailable")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = SinkRetrier().Do(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
