package graph

import "github.com/flowctl/orchestrator/resultx"

// Transformer hooks the four message-transformer phases layered on top of
// middleware. Any hook may be nil. ContinueOnFailure governs whether a
// failure in this transformer's hook halts the remaining transformers of
// that same hook for this node/run, except AfterExecution, which always
// runs every transformer regardless; it is the cleanup phase.
type Transformer struct {
	Name               string
	ContinueOnFailure  bool
	BeforeExecution    func(rc RunContext) *resultx.Error
	BeforeNode         func(req NodeRequest) *resultx.Error
	AfterNode          func(req NodeRequest, result NodeResult) *resultx.Error
	AfterExecution     func(report RunReport) *resultx.Error
}

// transformerError wraps a panic recovered from inside a transformer hook
// as a TRANSFORMER_ERROR: thrown exceptions are caught and converted.
func transformerError(name string, cause any) *resultx.Error {
	return resultx.New("graph", resultx.ErrExecution, "transformer panicked").
		WithSubject(name).
		WithContext("code", "TRANSFORMER_ERROR").
		WithContext("panic", cause)
}

func callHook(name string, continueOnFailure bool, fn func() *resultx.Error) *resultx.Error {
	var result *resultx.Error
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = transformerError(name, r)
			}
		}()
		result = fn()
	}()
	return result
}

// runBeforeExecution runs every transformer's BeforeExecution hook in
// order. A failing transformer with ContinueOnFailure=false halts the
// remaining transformers of this hook and returns that error; a failure
// from a transformer with ContinueOnFailure=true is discarded and the loop
// goes on, so the hook returns nil unless a halting failure occurred.
func runBeforeExecution(ts []Transformer, rc RunContext) *resultx.Error {
	for _, t := range ts {
		if t.BeforeExecution == nil {
			continue
		}
		if err := callHook(t.Name, t.ContinueOnFailure, func() *resultx.Error { return t.BeforeExecution(rc) }); err != nil {
			if !t.ContinueOnFailure {
				return err
			}
		}
	}
	return nil
}

func runBeforeNode(ts []Transformer, req NodeRequest) *resultx.Error {
	for _, t := range ts {
		if t.BeforeNode == nil {
			continue
		}
		if err := callHook(t.Name, t.ContinueOnFailure, func() *resultx.Error { return t.BeforeNode(req) }); err != nil {
			if !t.ContinueOnFailure {
				return err
			}
		}
	}
	return nil
}

func runAfterNode(ts []Transformer, req NodeRequest, result NodeResult) *resultx.Error {
	for _, t := range ts {
		if t.AfterNode == nil {
			continue
		}
		if err := callHook(t.Name, t.ContinueOnFailure, func() *resultx.Error { return t.AfterNode(req, result) }); err != nil {
			if !t.ContinueOnFailure {
				return err
			}
		}
	}
	return nil
}

// runAfterExecution invokes every transformer's AfterExecution hook
// unconditionally. It is the cleanup phase and always runs all of them,
// regardless of earlier failures in this same loop.
func runAfterExecution(ts []Transformer, report RunReport) {
	for _, t := range ts {
		if t.AfterExecution == nil {
			continue
		}
		callHook(t.Name, true, func() *resultx.Error { return t.AfterExecution(report) })
	}
}
