package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = stderrors.New("boom")

func TestAppErrorUnwrap(t *testing.T) {
	err := NewStorageError(errBoom)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, CodeStorage, err.Code)
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "boom")
}

func TestAppErrorWithin(t *testing.T) {
	inner := NewHardwareError("car_red", errBoom)
	outer := fmt.Errorf("entry action failed in state 0: %w", inner)

	err := inner.Within(outer)

	assert.Equal(t, CodeHardware, err.Code)
	assert.Equal(t, SeverityHigh, err.Severity)
	assert.False(t, err.Retryable)
	assert.Equal(t, outer.Error(), err.Error())
	assert.Same(t, outer, stderrors.Unwrap(err))
	assert.ErrorIs(t, err, errBoom)
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "plain error", err: errBoom, expected: false},
		{name: "storage error", err: NewStorageError(errBoom), expected: true},
		{name: "configuration error", err: NewConfigurationError(errBoom), expected: false},
		{name: "wrapped storage error", err: stderrors.Join(errBoom, NewStorageError(errBoom)), expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRetryable(tc.err))
		})
	}
}

func TestDefaultRetryPolicy_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := DefaultRetryPolicy().Do(context.Background(), func() error {
		calls++
		return NewControllerError(errBoom)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryPolicy_SucceedsAfterRetryableFailure(t *testing.T) {
	calls := 0
	err := DefaultRetryPolicy().Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return NewStorageError(errBoom)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDefaultRetryPolicy_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DefaultRetryPolicy().Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_ExhaustsBudget(t *testing.T) {
	var waits []time.Duration
	policy := RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     3 * time.Millisecond,
		Multiplier:     2,
		OnRetry: func(_ int, wait time.Duration, _ error) {
			waits = append(waits, wait)
		},
	}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return NewStorageError(errBoom)
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 3 * time.Millisecond}, waits)
}

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker()
	cb.now = func() time.Time { return now }

	for i := 0; i < MinRequests; i++ {
		_ = cb.Call(func() error { return errBoom })
	}
	assert.Equal(t, BreakerOpen, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(OpenDuration)
	for i := 0; i < HalfOpenMaxRequests; i++ {
		assert.NoError(t, cb.Call(func() error { return nil }))
	}
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestHandler_ReturnsRetryable(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	assert.True(t, h.Handle(context.Background(), NewStorageError(errBoom)))
	assert.False(t, h.Handle(context.Background(), errBoom))
	assert.False(t, h.Handle(context.Background(), nil))
}
