package resultx

import (
	"context"
	"testing"
)

func TestResultMapOnlyTouchesSuccess(t *testing.T) {
	ok := Ok(2)
	mapped := Map(ok, func(n int) int { return n * 10 })
	if v, success := mapped.Value(); !success || v != 20 {
		t.Fatalf("expected 20, got %v success=%v", v, success)
	}

	fail := Fail[int](New("tool", ErrTimeout, "boom"))
	mappedFail := Map(fail, func(n int) int { return n * 10 })
	if mappedFail.IsSuccess() {
		t.Fatalf("expected failure to survive Map untouched")
	}
	if mappedFail.Err().Code != ErrTimeout {
		t.Fatalf("expected failure Code preserved, got %v", mappedFail.Err().Code)
	}
}

func TestFlatMapSequencesOnlyOnSuccess(t *testing.T) {
	calls := 0
	step := func(n int) Result[int] {
		calls++
		return Ok(n + 1)
	}

	fail := Fail[int](New("tool", ErrExecution, "nope"))
	FlatMap(fail, step)
	if calls != 0 {
		t.Fatalf("step should not run on a failed Result, ran %d times", calls)
	}

	ok := Ok(1)
	out := FlatMap(ok, step)
	if v, _ := out.Value(); v != 2 {
		t.Fatalf("expected 2, got %v", v)
	}
	if calls != 1 {
		t.Fatalf("expected step to run exactly once, ran %d times", calls)
	}
}

// TestRecoverWithPreservesAmbientContext verifies the Open-Question decision
// recorded in SPEC_FULL.md: recoverWith's fallback closure sees whatever
// rtcontext state the caller attached to ctx, because Go carries it on
// context.Context rather than a custom coroutine scope.
func TestRecoverWithPreservesAmbientContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "tenant-42")

	fail := Fail[string](New("flow", ErrExecution, "step failed"))
	recovered := fail.RecoverWith(func(e *Error) Result[string] {
		v, _ := ctx.Value(key{}).(string)
		return Ok(v)
	})

	v, ok := recovered.Value()
	if !ok || v != "tenant-42" {
		t.Fatalf("expected recovered value to see ambient context, got %q ok=%v", v, ok)
	}
}

func TestFromExceptionClassifiesKnownPatterns(t *testing.T) {
	cases := []struct {
		msg  string
		want Code
	}{
		{"request timeout after 30s", ErrTimeout},
		{"connection refused", ErrNetwork},
		{"429 too many requests", ErrRateLimit},
		{"permission denied: forbidden", ErrPermission},
		{"invalid input: missing field", ErrInvalidInput},
		{"widget not found", ErrNotFound},
		{"something broke", ErrExecution},
	}
	for _, tc := range cases {
		err := FromException("tool", errString(tc.msg))
		if err.Code != tc.want {
			t.Errorf("FromException(%q).Code = %v, want %v", tc.msg, err.Code, tc.want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestCodeRetryable(t *testing.T) {
	retryable := []Code{ErrTimeout, ErrNetwork, ErrRateLimit}
	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("expected %v to be retryable", c)
		}
	}
	notRetryable := []Code{ErrNotFound, ErrInvalidInput, ErrPermission, ErrPanic}
	for _, c := range notRetryable {
		if c.Retryable() {
			t.Errorf("expected %v to not be retryable", c)
		}
	}
}
