// Package backoff computes jittered exponential backoff durations for
// callers composing their own retry loops around a Tool.Execute or
// GraphRunner.Run call. The engine itself imposes no default timeout or
// retry policy.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// BackoffPolicy parameterizes the exponential-backoff-with-jitter formula.
type BackoffPolicy struct {
	// InitialMs is the first attempt's backoff, in milliseconds.
	InitialMs float64
	// MaxMs caps the computed backoff, in milliseconds.
	MaxMs float64
	// Factor multiplies the backoff on each successive attempt.
	Factor float64
	// Jitter is the fraction (0.0-1.0) of the base backoff added as noise.
	Jitter float64
}

// ComputeBackoff returns the backoff duration for attempt (1-indexed),
// drawing its jitter from the package-level random source.
func ComputeBackoff(policy BackoffPolicy, attempt int) time.Duration {
	return ComputeBackoffWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// ComputeBackoffWithRand is ComputeBackoff with an injectable random value
// in [0.0, 1.0), for deterministic tests.
func ComputeBackoffWithRand(policy BackoffPolicy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// DefaultPolicy: 100ms initial, 30s max, factor 2, 10% jitter.
func DefaultPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialMs: 100,
		MaxMs:     30000,
		Factor:    2,
		Jitter:    0.1,
	}
}

// AggressivePolicy: 50ms initial, 5s max, factor 1.5, 5% jitter.
func AggressivePolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialMs: 50,
		MaxMs:     5000,
		Factor:    1.5,
		Jitter:    0.05,
	}
}

// ConservativePolicy: 500ms initial, 60s max, factor 2.5, 20% jitter.
func ConservativePolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialMs: 500,
		MaxMs:     60000,
		Factor:    2.5,
		Jitter:    0.2,
	}
}
