package tool

import (
	"context"
	"sync"

	"github.com/flowctl/orchestrator/resultx"
)

// MaxNameLength and MaxParamCount bound resource use per call, the same
// DoS guard a tool registry should apply.
const (
	MaxNameLength = 256
	MaxParamCount = 1024
)

// Registry is a thread-safe keyed map of Tools. It can be instantiated per
// application for test isolation; there is no hidden default instance.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name. Registration is idempotent by
// id: a duplicate name replaces the prior entry.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name, or (nil, false) on miss.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools. Registration order is not preserved
// or meaningful.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Execute looks up name and runs it, converting a missing tool into a
// resultx.Error with Code ErrNotFound rather than panicking.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) resultx.Result[Result] {
	if len(name) > MaxNameLength {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrInvalidInput, "tool name exceeds maximum length").WithSubject(name))
	}
	if len(params) > MaxParamCount {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrInvalidInput, "tool parameters exceed maximum field count").WithSubject(name))
	}

	t, ok := r.Get(name)
	if !ok {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrNotFound, "tool not found").WithSubject(name))
	}
	return t.Execute(ctx, params)
}
