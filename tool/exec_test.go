package tool

import (
	"context"
	"testing"
	"time"

	"github.com/flowctl/orchestrator/resultx"
)

func slowTool(name string, delay time.Duration) Tool {
	return NewFunc(name, "sleeps then succeeds", nil, func(ctx context.Context, params map[string]any) resultx.Result[Result] {
		select {
		case <-time.After(delay):
			return resultx.Ok(Result{Status: StatusSuccess, Value: name})
		case <-ctx.Done():
			return resultx.Fail[Result](resultx.New("tool", resultx.ErrCancelled, "cancelled").WithSubject(name))
		}
	})
}

func TestExecuteConcurrentlyPreservesOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(slowTool("fast", time.Millisecond))
	reg.Register(slowTool("slow", 20*time.Millisecond))

	exec := NewExecutor(reg, ExecConfig{Concurrency: 2, PerCallTimeout: time.Second, MaxAttempts: 1})
	calls := []Call{
		{ID: "1", Name: "slow"},
		{ID: "2", Name: "fast"},
	}
	results := exec.ExecuteConcurrently(context.Background(), calls, nil)

	if results[0].Call.Name != "slow" || results[1].Call.Name != "fast" {
		t.Fatalf("expected result order to match call order regardless of completion order, got %+v", results)
	}
	for _, r := range results {
		if !r.Result.IsSuccess() {
			t.Fatalf("expected %s to succeed, got %v", r.Call.Name, r.Result.Err())
		}
	}
}

func TestExecuteSingleTimesOut(t *testing.T) {
	reg := NewRegistry()
	reg.Register(slowTool("slow", 50*time.Millisecond))

	exec := NewExecutor(reg, ExecConfig{Concurrency: 1, PerCallTimeout: 5 * time.Millisecond, MaxAttempts: 1})
	res := exec.ExecuteSingle(context.Background(), Call{ID: "1", Name: "slow"})

	if res.IsSuccess() {
		t.Fatal("expected timeout failure, got success")
	}
	if res.Err().Code != resultx.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %s", res.Err().Code)
	}
}

func TestExecuteSequentiallyRetriesOnFailure(t *testing.T) {
	var attempts int
	flaky := NewFunc("flaky", "fails once then succeeds", nil, func(ctx context.Context, params map[string]any) resultx.Result[Result] {
		attempts++
		if attempts == 1 {
			return resultx.Fail[Result](resultx.New("tool", resultx.ErrExecution, "first attempt fails"))
		}
		return resultx.Ok(Result{Status: StatusSuccess, Value: "ok"})
	})
	reg := NewRegistry()
	reg.Register(flaky)

	exec := NewExecutor(reg, ExecConfig{Concurrency: 1, PerCallTimeout: time.Second, MaxAttempts: 2})
	results := exec.ExecuteSequentially(context.Background(), []Call{{ID: "1", Name: "flaky"}}, nil)

	if !results[0].Result.IsSuccess() {
		t.Fatalf("expected retry to succeed, got %v", results[0].Result.Err())
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
}
