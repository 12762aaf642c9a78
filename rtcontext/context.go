// Package rtcontext propagates per-run execution state (tenant, run ID,
// deadlines, variables) along a context.Context, using the standard
// private-key-type idiom for ambient value propagation.
package rtcontext

import (
	"context"
	"strings"
	"sync"
	"time"
)

type executionContextKey struct{}

// ExecutionContext is the ambient state threaded through every tool call,
// agent turn, flow step, and graph node execution within a single run. It
// is immutable from the perspective of callees: Derive returns a copy with
// overrides applied rather than mutating in place, so concurrent branches
// of a PARALLEL/COMPETITION flow never race on shared state.
type ExecutionContext struct {
	// RunID identifies the top-level graph/flow run.
	RunID string

	// TenantID scopes variables and HITL routing to a tenant; cache keys
	// and event bus channels are namespaced by it to prevent cross-tenant
	// leakage.
	TenantID string

	// ParentStepID identifies the flow step or graph node that spawned
	// this execution, empty at the root.
	ParentStepID string

	// Deadline is the wall-clock time this execution must complete by.
	// Zero means no deadline beyond ctx's own cancellation.
	Deadline time.Time

	mu        sync.RWMutex
	variables map[string]any
}

// New creates a root ExecutionContext for a run.
func New(runID, tenantID string) *ExecutionContext {
	return &ExecutionContext{
		RunID:     runID,
		TenantID:  tenantID,
		variables: make(map[string]any),
	}
}

// Get reads a variable, returning false if unset.
func (e *ExecutionContext) Get(key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.variables[key]
	return v, ok
}

// Set stores a variable visible to this ExecutionContext and anything
// derived from it going forward (derivation copies the map, so earlier
// derivations are unaffected).
func (e *ExecutionContext) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variables[key] = value
}

// Derive returns a child ExecutionContext scoped to a new step, carrying a
// snapshot of the parent's variables. Used when a graph node or flow step
// spawns nested work so that siblings don't observe each other's writes.
func (e *ExecutionContext) Derive(stepID string) *ExecutionContext {
	e.mu.RLock()
	snapshot := make(map[string]any, len(e.variables))
	for k, v := range e.variables {
		snapshot[k] = v
	}
	e.mu.RUnlock()

	return &ExecutionContext{
		RunID:        e.RunID,
		TenantID:     e.TenantID,
		ParentStepID: stepID,
		Deadline:     e.Deadline,
		variables:    snapshot,
	}
}

// WithExecutionContext attaches an ExecutionContext to ctx.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	if ec == nil {
		return ctx
	}
	return context.WithValue(ctx, executionContextKey{}, ec)
}

// FromContext retrieves the ExecutionContext carried on ctx, if any.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(executionContextKey{}).(*ExecutionContext)
	return ec, ok
}

// RunID is a convenience accessor returning "" when no ExecutionContext is
// present.
func RunID(ctx context.Context) string {
	if ec, ok := FromContext(ctx); ok {
		return ec.RunID
	}
	return ""
}

// TenantID is a convenience accessor returning "" when no ExecutionContext
// is present.
func TenantID(ctx context.Context) string {
	if ec, ok := FromContext(ctx); ok {
		return ec.TenantID
	}
	return ""
}

// ScopeKey namespaces a cache/event-bus key by tenant, preventing one
// tenant's idempotency or cache entries from being visible to another.
func ScopeKey(ctx context.Context, key string) string {
	tenant := strings.TrimSpace(TenantID(ctx))
	if tenant == "" {
		return key
	}
	return tenant + ":" + key
}
