// Package flow implements the multi-agent flow engine: an ordered
// list of steps dispatched through one of four strategies. It is a
// from-scratch flow engine rather than adapted from a handoff-centric
// multiagent package, since the flow contract (condition-gated steps, a
// fixed strategy enum) is simpler than general supervisor/peer handoffs,
// but its concurrency idioms (errgroup fan-out, first-success-wins via a
// buffered channel) follow the same patterns used for dependency-staged
// execution elsewhere in this module.
package flow

import (
	"context"
	"time"

	"github.com/flowctl/orchestrator/agent"
	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/resultx"
)

// Strategy selects how a Flow dispatches its enabled steps.
type Strategy string

const (
	Sequential  Strategy = "SEQUENTIAL"
	Parallel    Strategy = "PARALLEL"
	Competition Strategy = "COMPETITION"
	Pipeline    Strategy = "PIPELINE"
)

// Step is one agent reference in a Flow, gated by an optional condition
// evaluated against the flow's input message. StripData opts this step's
// reply out of carrying its Data into the next SEQUENTIAL step; PIPELINE
// always carries Data regardless of StripData.
type Step struct {
	ID        string
	Agent     agent.Agent
	Condition func(msg comm.Comm) bool
	StripData bool
}

func (s Step) enabled(msg comm.Comm) bool {
	return s.Condition == nil || s.Condition(msg)
}

// Resolver picks a Strategy dynamically given the input message and the
// steps that would currently be enabled. A Flow without a Resolver always
// uses its Default strategy.
type Resolver func(msg comm.Comm, enabled []Step) Strategy

// Flow holds an ordered list of steps plus a default strategy and optional
// dynamic resolver.
type Flow struct {
	Steps    []Step
	Default  Strategy
	Resolver Resolver
}

// New builds a Flow with the given steps and default strategy.
func New(defaultStrategy Strategy, steps ...Step) *Flow {
	return &Flow{Steps: steps, Default: defaultStrategy}
}

// Process runs the flow against msg: conditions are evaluated, a strategy
// is resolved, and the corresponding dispatch function runs the enabled
// steps. The returned Comm carries flow_strategy/execution_time_ms/
// agent_count/completed_steps/skipped_steps in Metadata.
//
// SEQUENTIAL and PIPELINE re-check each step's condition against the
// message flowing into it at dispatch time (the previous step's reply, or
// the original input for the first step) rather than only once up front:
// a later step's condition routinely depends on data an earlier step just
// produced (e.g. "run step 2 only if step 1 marked the message analyzed"),
// which a single upfront pass against the unmodified input could never see.
// PARALLEL and COMPETITION have no such ordering, so their steps are gated
// once against the flow's original input.
func (f *Flow) Process(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
	resolverView := enabledAgainst(f.Steps, msg)

	strategy := f.Default
	if f.Resolver != nil {
		strategy = f.Resolver(msg, resolverView)
	}

	started := time.Now()
	var result resultx.Result[comm.Comm]
	var completed, skipped, agentCount int

	switch strategy {
	case Sequential:
		result, completed, skipped = runSequential(ctx, f.Steps, msg, true)
		agentCount = len(f.Steps)
	case Pipeline:
		result, completed, skipped = runSequential(ctx, f.Steps, msg, false)
		agentCount = len(f.Steps)
	case Parallel:
		enabled := resolverView
		result, completed = runParallel(ctx, enabled, msg)
		skipped = len(f.Steps) - len(enabled)
		agentCount = len(enabled)
	case Competition:
		enabled := resolverView
		result, completed = runCompetition(ctx, enabled, msg)
		skipped = len(f.Steps) - len(enabled)
		agentCount = len(enabled)
	default:
		return resultx.Fail[comm.Comm](resultx.New("flow", resultx.ErrInvalidInput, "unknown flow strategy").WithContext("strategy", string(strategy)))
	}
	elapsedMs := time.Since(started).Milliseconds()

	if result.IsFailure() {
		return result
	}
	reply := result.Unwrap()
	reply = withMetadata(reply, strategy, elapsedMs, agentCount, completed, skipped)
	return resultx.Ok(reply)
}

// enabledAgainst returns the subset of steps whose condition passes
// against msg, used to advise a dynamic Resolver and to gate
// PARALLEL/COMPETITION dispatch.
func enabledAgainst(steps []Step, msg comm.Comm) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.enabled(msg) {
			out = append(out, s)
		}
	}
	return out
}

// withMetadata stamps the standard flow metadata fields onto reply.
func withMetadata(reply comm.Comm, strategy Strategy, elapsedMs int64, agentCount, completed, skipped int) comm.Comm {
	if reply.Metadata == nil {
		reply.Metadata = make(map[string]any, 5)
	}
	reply.Metadata["flow_strategy"] = string(strategy)
	reply.Metadata["execution_time_ms"] = elapsedMs
	reply.Metadata["agent_count"] = agentCount
	reply.Metadata["completed_steps"] = completed
	reply.Metadata["skipped_steps"] = skipped
	return reply
}

// stepError annotates err with the id of the step that produced it,
// without mutating the caller's original error value.
func stepError(stepID string, err *resultx.Error) *resultx.Error {
	clone := *err
	return clone.WithContext("step", stepID)
}
