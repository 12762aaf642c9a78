package graph

import "github.com/flowctl/orchestrator/resultx"

// ErrorAction tells GraphRunner how to handle a failed node after
// middleware.OnError has inspected it.
type ErrorAction string

const (
	// Propagate records a FAILED NodeReport and exits the node loop with
	// failure. The default when no middleware opts in to RECOVER/SUPPRESS.
	Propagate ErrorAction = "PROPAGATE"
	// Recover redirects execution to RecoveryNode instead of failing.
	Recover ErrorAction = "RECOVER"
	// Suppress treats the failure as a terminal success with nil data.
	Suppress ErrorAction = "SUPPRESS"
)

// ErrorDecision is OnError's return value: the chosen action plus, for
// RECOVER, the node to continue at.
type ErrorDecision struct {
	Action       ErrorAction
	RecoveryNode string
}

// RunContext is what middleware hooks receive alongside node-level detail:
// enough to log, emit metrics, or make a recovery decision without a
// direct reference to GraphRunner.
type RunContext struct {
	GraphID string
	RunID   string
}

// NodeRequest is passed to OnNode; Next advances to the following
// middleware, or to the node's own Run if this is the last middleware in
// the chain.
type NodeRequest struct {
	NodeID  string
	Input   any
	RunCtx  RunContext
}

// NodeNext is the continuation a middleware calls to proceed.
type NodeNext func(req NodeRequest) resultx.Result[NodeResult]

// Middleware implements any subset of the four hooks; a zero-value
// Middleware (all fields nil) is a legal no-op, letting a caller install
// logging-only or metrics-only middleware without stubbing every hook.
type Middleware struct {
	// OnStart runs before the node loop begins. next continues the chain
	// (to the following middleware, or into the loop if this is the last).
	OnStart func(rc RunContext, next func())

	// OnNode wraps a single node's execution. Implementations that don't
	// need to short-circuit should call next(req) and return its result.
	OnNode func(req NodeRequest, next NodeNext) resultx.Result[NodeResult]

	// OnError inspects a failed node and decides how the runner proceeds.
	OnError func(err *resultx.Error, rc RunContext) ErrorDecision

	// OnFinish runs after the run reaches a terminal state. A panic from
	// OnFinish is recovered and discarded, never surfaced; middleware
	// cleanup is best-effort.
	OnFinish func(report RunReport)
}

// runOnStart invokes every middleware's OnStart in declaration order, each
// one's next continuing to the following middleware.
func runOnStart(mws []Middleware, rc RunContext) {
	var chain func(i int)
	chain = func(i int) {
		if i >= len(mws) {
			return
		}
		if mws[i].OnStart == nil {
			chain(i + 1)
			return
		}
		mws[i].OnStart(rc, func() { chain(i + 1) })
	}
	chain(0)
}

// runOnNode builds the onion around the node's own execution: the first
// middleware wraps the second, which wraps the third, ... which wraps the
// node itself. Each middleware's next is called at most once per node, so
// depth never grows with node count: the chain linearizes across nodes
// by the runner, not by middleware re-entry.
func runOnNode(mws []Middleware, req NodeRequest, run func(NodeRequest) resultx.Result[NodeResult]) resultx.Result[NodeResult] {
	var build func(i int) NodeNext
	build = func(i int) NodeNext {
		if i >= len(mws) {
			return run
		}
		inner := build(i + 1)
		mw := mws[i]
		if mw.OnNode == nil {
			return inner
		}
		return func(r NodeRequest) resultx.Result[NodeResult] {
			return mw.OnNode(r, inner)
		}
	}
	return build(0)(req)
}

// runOnError asks each middleware in turn whether it wants to handle err;
// the first non-default (non-empty) decision wins. No opinion from any
// middleware means PROPAGATE.
func runOnError(mws []Middleware, err *resultx.Error, rc RunContext) ErrorDecision {
	for _, mw := range mws {
		if mw.OnError == nil {
			continue
		}
		d := mw.OnError(err, rc)
		if d.Action != "" && d.Action != Propagate {
			return d
		}
	}
	return ErrorDecision{Action: Propagate}
}

// runOnFinish invokes every middleware's OnFinish, swallowing panics from
// any one of them so a single broken middleware can't corrupt a report
// that has already reached its terminal state.
func runOnFinish(mws []Middleware, report RunReport) {
	for _, mw := range mws {
		if mw.OnFinish == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			mw.OnFinish(report)
		}()
	}
}
