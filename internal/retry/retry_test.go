package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int

	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}

	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoExhausts(t *testing.T) {
	cause := errors.New("always failing")
	calls := 0

	_, err := Do(context.Background(), fastPolicy(4), func(context.Context) (int, error) {
		calls++
		return 0, cause
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, cause)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0

	p := fastPolicy(5)
	p.Retryable = func(err error) bool { return !errors.Is(err, permanent) }

	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := Policy{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	_, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("temporary")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyDefaults(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}.withDefaults()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, time.Second, p.MaxBackoff)
	assert.Equal(t, float64(DefaultMultiplier), p.Multiplier)
}
