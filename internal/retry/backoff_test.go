package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		attempt  int
		max      time.Duration
		expected time.Duration
	}{
		{0, 0, 100 * time.Millisecond},           // base * 2^0 = 100ms
		{1, 0, 200 * time.Millisecond},           // base * 2^1 = 200ms
		{4, 0, 1600 * time.Millisecond},          // base * 2^4 = 1600ms
		{4, time.Second, time.Second},            // capped
		{2, time.Second, 400 * time.Millisecond}, // under the cap
		{62, 5 * time.Second, 5 * time.Second},   // overflow clamps to cap
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ExponentialBackoff(tt.attempt, base, tt.max), "attempt %d", tt.attempt)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, 0, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 2, time.Millisecond, 0, func() error {
		calls++
		return errors.New("broker down")
	})

	assert.EqualError(t, err, "broker down")
	assert.Equal(t, 2, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 0, time.Millisecond, 0, func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 5, time.Second, 0, func() error { return errors.New("never") })

	assert.ErrorIs(t, err, context.Canceled)
}
