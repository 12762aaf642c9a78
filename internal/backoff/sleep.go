package backoff

import (
	"context"
	"time"
)

// SleepWithContext sleeps for duration, returning early with ctx.Err() if
// ctx is cancelled first.
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SleepWithBackoff sleeps for ComputeBackoff(policy, attempt).
func SleepWithBackoff(ctx context.Context, policy BackoffPolicy, attempt int) error {
	duration := ComputeBackoff(policy, attempt)
	return SleepWithContext(ctx, duration)
}
