package clock

import (
	"context"
	"time"
)

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since reports elapsed time relative to NowFunc.
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }

// SleepFunc suspends the calling goroutine for d or until ctx is cancelled.
// Override in tests to collapse waits while still observing the requested
// durations.
var SleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep is a thin wrapper around SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error { return SleepFunc(ctx, d) }
