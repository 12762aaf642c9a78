package agent

import (
	"context"

	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/tool"
)

// WithTools wraps an Agent's ProcessMessage logic with an owned tool
// registry, the "may own tools" half of the Agent contract. The handler
// function receives the tool registry directly rather than through
// ambient context, so its tool usage is visible at the call site.
type WithTools struct {
	id           string
	name         string
	description  string
	capabilities []string
	tools        *tool.Registry
	handler      func(ctx context.Context, msg comm.Comm, tools *tool.Registry) resultx.Result[comm.Comm]
}

// NewWithTools builds a tool-owning agent.
func NewWithTools(id, name, description string, capabilities []string, tools *tool.Registry, handler func(ctx context.Context, msg comm.Comm, tools *tool.Registry) resultx.Result[comm.Comm]) *WithTools {
	if tools == nil {
		tools = tool.NewRegistry()
	}
	return &WithTools{id: id, name: name, description: description, capabilities: capabilities, tools: tools, handler: handler}
}

func (a *WithTools) ID() string             { return a.id }
func (a *WithTools) Name() string           { return a.name }
func (a *WithTools) Description() string    { return a.description }
func (a *WithTools) Capabilities() []string { return a.capabilities }

// Tools returns the agent's owned tool registry, so callers can register
// additional tools before first use.
func (a *WithTools) Tools() *tool.Registry { return a.tools }

func (a *WithTools) ProcessMessage(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
	return a.handler(ctx, msg, a.tools)
}
