package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flowctl/orchestrator/internal/backoff"
	"github.com/flowctl/orchestrator/resultx"
)

// ExecConfig configures concurrent multi-call execution against a Registry.
type ExecConfig struct {
	// Concurrency bounds simultaneous in-flight calls. Default: 4.
	Concurrency int

	// PerCallTimeout bounds each attempt of a call; every retry gets a
	// fresh timeout. Default: 30s.
	PerCallTimeout time.Duration

	// MaxAttempts is the number of tries per call before giving up. Default: 1.
	MaxAttempts int

	// Backoff computes the wait between attempts. A zero value is replaced
	// by backoff.DefaultPolicy.
	Backoff backoff.BackoffPolicy
}

// DefaultExecConfig provides sane defaults: 4-way concurrency, a
// 30-second per-call timeout, and no retries.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Concurrency:    4,
		PerCallTimeout: 30 * time.Second,
		MaxAttempts:    1,
	}
}

// Call is one named tool invocation submitted to an Executor.
type Call struct {
	ID     string
	Name   string
	Params map[string]any
}

// CallResult pairs a Call with its outcome and timing.
type CallResult struct {
	Index     int
	Call      Call
	Result    resultx.Result[Result]
	StartedAt time.Time
	EndedAt   time.Time
	TimedOut  bool
}

// EventFunc is a non-blocking lifecycle callback, invoked for call
// start/retry/completion. It must not block the executor.
type EventFunc func(callID, name, phase string, attempt int)

// Executor runs Calls against a Registry with bounded concurrency, a
// per-call timeout, and optional attempt-based retry.
type Executor struct {
	registry *Registry
	config   ExecConfig
}

// NewExecutor builds an Executor. Zero-valued config fields fall back to
// DefaultExecConfig.
func NewExecutor(registry *Registry, config ExecConfig) *Executor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerCallTimeout <= 0 {
		config.PerCallTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.Backoff == (backoff.BackoffPolicy{}) {
		config.Backoff = backoff.DefaultPolicy()
	}
	return &Executor{registry: registry, config: config}
}

// ExecuteConcurrently runs calls with bounded concurrency, preserving input
// order in the returned slice. emit may be nil.
func (e *Executor) ExecuteConcurrently(ctx context.Context, calls []Call, emit EventFunc) []CallResult {
	results := make([]CallResult, len(calls))

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = CallResult{
					Index: idx,
					Call:  c,
					Result: resultx.Fail[Result](resultx.New("tool", resultx.ErrCancelled, "context cancelled before call started").WithSubject(c.Name)),
				}
				return
			}

			results[idx] = e.runWithRetry(ctx, idx, c, emit)
		}(i, call)
	}

	wg.Wait()
	return results
}

// ExecuteSequentially runs calls one at a time in order.
func (e *Executor) ExecuteSequentially(ctx context.Context, calls []Call, emit EventFunc) []CallResult {
	results := make([]CallResult, len(calls))
	for i, call := range calls {
		results[i] = e.runWithRetry(ctx, i, call, emit)
	}
	return results
}

// ExecuteSingle runs one call through the registry with timeout and retry,
// without the bookkeeping ExecuteConcurrently/Sequentially return.
func (e *Executor) ExecuteSingle(ctx context.Context, call Call) resultx.Result[Result] {
	return e.runWithRetry(ctx, 0, call, nil).Result
}

func (e *Executor) runWithRetry(ctx context.Context, idx int, call Call, emit EventFunc) CallResult {
	startedAt := time.Now()
	maxAttempts := e.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var result resultx.Result[Result]
	var timedOut bool

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if emit != nil {
			emit(call.ID, call.Name, "started", attempt)
		}

		callCtx, cancel := context.WithTimeout(ctx, e.config.PerCallTimeout)
		result, timedOut = e.executeWithTimeout(callCtx, call)
		cancel()

		if result.IsSuccess() {
			break
		}

		if attempt < maxAttempts {
			if emit != nil {
				phase := "failed"
				if timedOut {
					phase = "timeout"
				}
				emit(call.ID, call.Name, phase, attempt)
			}
			if wait := backoff.ComputeBackoff(e.config.Backoff, attempt); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					result = resultx.Fail[Result](resultx.New("tool", resultx.ErrCancelled, "cancelled during retry backoff").WithSubject(call.Name))
					attempt = maxAttempts
				}
			}
		}
	}

	endedAt := time.Now()
	if emit != nil {
		phase := "completed"
		if timedOut {
			phase = "timeout"
		} else if !result.IsSuccess() {
			phase = "failed"
		}
		emit(call.ID, call.Name, phase, maxAttempts)
	}

	return CallResult{
		Index:     idx,
		Call:      call,
		Result:    result,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		TimedOut:  timedOut,
	}
}

// executeWithTimeout runs a single attempt, distinguishing deadline
// exceeded from outright cancellation and never blocking on a goroutine
// whose result arrived after the caller gave up.
func (e *Executor) executeWithTimeout(ctx context.Context, call Call) (resultx.Result[Result], bool) {
	resultChan := make(chan resultx.Result[Result], 1)

	go func() {
		res := e.registry.Execute(ctx, call.Name, call.Params)
		select {
		case resultChan <- res:
		default:
		}
	}()

	select {
	case <-ctx.Done():
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		code := resultx.ErrCancelled
		msg := "tool execution cancelled"
		if timedOut {
			code = resultx.ErrTimeout
			msg = fmt.Sprintf("tool execution timed out after %v", e.config.PerCallTimeout)
		}
		return resultx.Fail[Result](resultx.New("tool", code, msg).WithSubject(call.Name)), timedOut
	case res := <-resultChan:
		return res, false
	}
}
