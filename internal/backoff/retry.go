package backoff

import (
	"context"
	"errors"
)

// ErrMaxAttemptsExhausted is returned once maxAttempts have all failed.
var ErrMaxAttemptsExhausted = errors.New("max retry attempts exhausted")

// RetryResult is the outcome of RetryWithBackoff.
type RetryResult[T any] struct {
	Value     T
	Attempts  int
	LastError error
}

// RetryWithBackoff calls fn up to maxAttempts times (1-indexed), sleeping
// per policy between attempts. fn returns (value, nil) on success or
// (zero, err) to trigger another attempt. ctx is checked before each call,
// so a cancelled ctx stops retrying rather than sleeping it out.
func RetryWithBackoff[T any](
	ctx context.Context,
	policy BackoffPolicy,
	maxAttempts int,
	fn func(attempt int) (T, error),
) (RetryResult[T], error) {
	var result RetryResult[T]
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = lastErr
			return result, err
		}

		value, err := fn(attempt)
		if err == nil {
			result.Value = value
			return result, nil
		}

		lastErr = err
		result.LastError = err

		if attempt < maxAttempts {
			if err := SleepWithBackoff(ctx, policy, attempt); err != nil {
				return result, err
			}
		}
	}

	return result, ErrMaxAttemptsExhausted
}

// RetryFunc runs RetryWithBackoff under DefaultPolicy, returning just the
// value and error.
func RetryFunc[T any](
	ctx context.Context,
	maxAttempts int,
	fn func(attempt int) (T, error),
) (T, error) {
	result, err := RetryWithBackoff(ctx, DefaultPolicy(), maxAttempts, fn)
	return result.Value, err
}

// RetrySimple runs RetryWithBackoff under DefaultPolicy for a fn with no
// return value.
func RetrySimple(
	ctx context.Context,
	maxAttempts int,
	fn func() error,
) error {
	_, err := RetryWithBackoff(ctx, DefaultPolicy(), maxAttempts, func(_ int) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
