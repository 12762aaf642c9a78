// Package agent defines the Agent contract: a polymorphic unit that
// consumes a Comm and produces a Comm-or-error, plus a process-wide keyed
// registry for looking agents up by id. It generalizes an
// LLM-agent-specific config struct into a thin interface any handler can
// implement, LLM-backed, rule-based, or a pure function, the same way
// tool.Tool generalized tool_registry.go.
package agent

import (
	"context"
	"sync"

	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/resultx"
)

// Agent is a unit identified by id that processes one Comm and returns
// either a reply Comm or a resultx.Error. Implementations must be safe for
// concurrent ProcessMessage calls, the same guarantee Tool and Flow give.
type Agent interface {
	ID() string
	Name() string
	Description() string
	Capabilities() []string
	ProcessMessage(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm]
}

// HasCapability reports whether a matches capability. A convenience helper
// for flow strategies and routers that select agents by capability.
func HasCapability(a Agent, capability string) bool {
	for _, c := range a.Capabilities() {
		if c == capability {
			return true
		}
	}
	return false
}

// Func adapts a plain function into an Agent for small agents that don't
// need a dedicated type, the same role tool.Func plays for tools.
type Func struct {
	id           string
	name         string
	description  string
	capabilities []string
	fn           func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm]
}

// NewFunc builds an Agent from an id, display metadata, and a process
// function.
func NewFunc(id, name, description string, capabilities []string, fn func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm]) *Func {
	return &Func{id: id, name: name, description: description, capabilities: capabilities, fn: fn}
}

func (f *Func) ID() string             { return f.id }
func (f *Func) Name() string           { return f.name }
func (f *Func) Description() string    { return f.description }
func (f *Func) Capabilities() []string { return f.capabilities }

func (f *Func) ProcessMessage(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
	return f.fn(ctx, msg)
}

// Registry is a thread-safe, process-wide-but-instantiable keyed map of
// Agents. Registration is idempotent by id: registering a duplicate id
// replaces the prior entry. Registries are not required for execution;
// flows and graphs may hold direct Agent references instead.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds or replaces an agent by id.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID()] = a
}

// Unregister removes an agent by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// Get returns the agent for id, or (nil, false) on miss.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// List returns all registered agents, in no particular order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// ByCapability returns every registered agent that reports capability.
func (r *Registry) ByCapability(capability string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for _, a := range r.agents {
		if HasCapability(a, capability) {
			out = append(out, a)
		}
	}
	return out
}

// Dispatch looks up id and forwards msg to it, converting a miss into a
// resultx.Error with Code ErrNotFound rather than a nil-pointer panic.
func (r *Registry) Dispatch(ctx context.Context, id string, msg comm.Comm) resultx.Result[comm.Comm] {
	a, ok := r.Get(id)
	if !ok {
		return resultx.Fail[comm.Comm](resultx.New("agent", resultx.ErrNotFound, "agent not found").WithSubject(id))
	}
	return a.ProcessMessage(ctx, msg)
}
