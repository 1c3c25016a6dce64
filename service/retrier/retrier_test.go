package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/opsgate/internal/clock"
)

func captureSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var sleeps []time.Duration
	prev := clock.SleepFunc
	clock.SleepFunc = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	t.Cleanup(func() { clock.SleepFunc = prev })
	return &sleeps
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	sleeps := captureSleeps(t)
	service := New(Config{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}, nil)

	attempts := 0
	err := service.Execute(context.Background(), "send-command", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, *sleeps, 2)
}

func TestExecuteNonRetryableFailsFast(t *testing.T) {
	sleeps := captureSleeps(t)
	service := New(Config{}, func(error) Class { return NonRetryable })

	attempts := 0
	cause := errors.New("validation error")
	err := service.Execute(context.Background(), "stop-instances", func(ctx context.Context) error {
		attempts++
		return cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, *sleeps)
}

func TestExecuteAuthErrorNeverRetried(t *testing.T) {
	captureSleeps(t)
	service := New(Config{}, nil)

	attempts := 0
	err := service.Execute(context.Background(), "terminate-instances", func(ctx context.Context) error {
		attempts++
		return errors.New("AccessDenied: not authorized to perform ec2:TerminateInstances")
	})
	assert.Equal(t, 1, attempts)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestExecuteExhaustionWrapsLastError(t *testing.T) {
	captureSleeps(t)

	testCases := []struct {
		description string
		cause       error
		expectType  interface{}
	}{
		{
			description: "timeout cause wrapped as timeout",
			cause:       errors.New("request timed out"),
			expectType:  new(*TimeoutError),
		},
		{
			description: "transport cause wrapped as connection",
			cause:       errors.New("connection refused"),
			expectType:  new(*ConnectionError),
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			service := New(Config{MaxRetries: 2}, func(error) Class { return Retryable })
			attempts := 0
			err := service.Execute(context.Background(), "query", func(ctx context.Context) error {
				attempts++
				return testCase.cause
			})
			assert.Equal(t, 3, attempts)
			switch target := testCase.expectType.(type) {
			case **TimeoutError:
				assert.ErrorAs(t, err, target)
			case **ConnectionError:
				assert.ErrorAs(t, err, target)
			}
			assert.ErrorIs(t, err, testCase.cause)
		})
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	service := New(Config{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2}, nil)

	// deterministic extremes of the jitter draw
	for _, draw := range []float64{0, 0.5, 1} {
		service.jitterFn = func() float64 { return draw }
		for attempt := 0; attempt < 5; attempt++ {
			delay := service.backoff(attempt)
			assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
			assert.LessOrEqual(t, delay, 5*time.Second) // 4s cap +25% jitter
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	testCases := []struct {
		code   int
		expect Class
	}{
		{code: 401, expect: Auth},
		{code: 403, expect: Auth},
		{code: 429, expect: Retryable},
		{code: 500, expect: Retryable},
		{code: 502, expect: Retryable},
		{code: 503, expect: Retryable},
		{code: 504, expect: Retryable},
		{code: 400, expect: NonRetryable},
		{code: 404, expect: NonRetryable},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, ClassifyStatus(testCase.code), "status %d", testCase.code)
	}
}
