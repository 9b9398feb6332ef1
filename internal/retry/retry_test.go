package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fastPolicy(n int) Policy {
	return Policy{MaxAttempts: n, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int
	p := fastPolicy(5)
	p.OnRetry = func(attempt int, _ time.Duration, err error) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errFlaky)
	}

	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDoZeroPolicyIsSingleAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDoOncePolicy(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Once, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
}

func TestDoFatalStopsImmediately(t *testing.T) {
	calls := 0
	p := fastPolicy(5)
	p.Classify = func(error) Class { return Fatal }

	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDoContextErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestDoCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDoCancelledDuringBackoffKeepsCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}
	p.OnRetry = func(int, time.Duration, error) { cancel() }

	err := Do(ctx, p, func(context.Context) error { return errFlaky })
	assert.ErrorIs(t, err, errFlaky)
}

func TestBackoffCapped(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}.withDefaults()
	assert.Equal(t, 100*time.Millisecond, p.backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.backoff(3))
	assert.Equal(t, time.Second, p.backoff(5))
	assert.Equal(t, time.Second, p.backoff(64), "large shifts must not overflow")
}

func TestBackoffJitterBounded(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Jitter: 5 * time.Millisecond}.withDefaults()
	for i := 0; i < 20; i++ {
		w := p.backoff(1)
		assert.GreaterOrEqual(t, w, 10*time.Millisecond)
		assert.Less(t, w, 15*time.Millisecond)
	}
}

func TestAttempts(t *testing.T) {
	p := Attempts(4)
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Greater(t, p.BaseDelay, time.Duration(0))
}
