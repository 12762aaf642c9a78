package graph

import (
	"context"

	"github.com/flowctl/orchestrator/agent"
	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/rtcontext"
	"github.com/flowctl/orchestrator/tool"
)

// AgentNode wraps an Agent, pulling its input from state[inputKey] if
// present, else state["_previous"]. A non-Comm input is wrapped in a new
// system Comm (empty content when the input is nil). Its output is the
// agent's reply Comm.
type AgentNode struct {
	id       string
	agent    agent.Agent
	inputKey string
}

// NewAgentNode builds an AgentNode. inputKey may be empty, in which case
// the node reads state["_previous"].
func NewAgentNode(id string, a agent.Agent, inputKey string) *AgentNode {
	return &AgentNode{id: id, agent: a, inputKey: inputKey}
}

func (n *AgentNode) ID() string { return n.id }

func (n *AgentNode) Run(nc *NodeContext) resultx.Result[NodeResult] {
	input := nc.Previous()
	if n.inputKey != "" {
		if v, ok := nc.State[n.inputKey]; ok {
			input = v
		}
	}

	msg, ok := input.(comm.Comm)
	if !ok {
		msg = comm.New(stringify(input), "graph", comm.RoleSystem)
	}

	ctx := context.Background()
	if ec, ok := nc.State[ecStateKey].(*rtcontext.ExecutionContext); ok {
		ctx = rtcontext.WithExecutionContext(ctx, ec.Derive(n.id))
	}

	res := n.agent.ProcessMessage(ctx, msg)
	if res.IsFailure() {
		return resultx.Fail[NodeResult](res.Err())
	}
	reply := res.Unwrap()
	return resultx.Ok(NodeResult{Data: reply, Metadata: map[string]any{"agent_id": n.agent.ID()}})
}

// ToolNode calls a Tool, mapping NodeContext.State into the tool's
// parameters via paramFn. A WAITING_HITL tool result is bubbled up as the
// node's Data unchanged, letting GraphRunner recognize and suspend on it.
type ToolNode struct {
	id      string
	tool    tool.Tool
	paramFn func(nc *NodeContext) map[string]any
}

// NewToolNode builds a ToolNode. paramFn may be nil, in which case the
// tool is called with no parameters.
func NewToolNode(id string, t tool.Tool, paramFn func(nc *NodeContext) map[string]any) *ToolNode {
	return &ToolNode{id: id, tool: t, paramFn: paramFn}
}

func (n *ToolNode) ID() string { return n.id }

func (n *ToolNode) Run(nc *NodeContext) resultx.Result[NodeResult] {
	params := map[string]any{}
	if n.paramFn != nil {
		params = n.paramFn(nc)
	}

	ctx := context.Background()
	if ec, ok := nc.State[ecStateKey].(*rtcontext.ExecutionContext); ok {
		ctx = rtcontext.WithExecutionContext(ctx, ec.Derive(n.id))
	}

	res := n.tool.Execute(ctx, params)
	if res.IsFailure() {
		return resultx.Fail[NodeResult](res.Err())
	}

	tr := res.Unwrap()
	meta := map[string]any{"tool_name": n.tool.Name(), "tool_status": string(tr.Status)}
	for k, v := range tr.Metadata {
		meta[k] = v
	}

	if tr.Status == tool.StatusWaitingHITL {
		return resultx.Ok(NodeResult{Data: tr, Metadata: meta})
	}
	if tr.Status != tool.StatusSuccess {
		return resultx.Fail[NodeResult](resultx.New("graph", resultx.ErrExecution, tr.Message).WithSubject(n.tool.Name()).WithContext("toolErrorCode", tr.ErrCode))
	}
	return resultx.Ok(NodeResult{Data: tr.Value, Metadata: meta})
}

// OutputNode selects or transforms the final value of a run from its
// NodeContext, typically the last node before a graph's terminal edge.
type OutputNode struct {
	id   string
	selectFn func(nc *NodeContext) any
}

// NewOutputNode builds an OutputNode with a selection function. A nil
// selectFn passes state["_previous"] through unchanged.
func NewOutputNode(id string, selectFn func(nc *NodeContext) any) *OutputNode {
	return &OutputNode{id: id, selectFn: selectFn}
}

func (n *OutputNode) ID() string { return n.id }

func (n *OutputNode) Run(nc *NodeContext) resultx.Result[NodeResult] {
	if n.selectFn == nil {
		return resultx.Ok(NodeResult{Data: nc.Previous()})
	}
	return resultx.Ok(NodeResult{Data: n.selectFn(nc)})
}

// ecStateKey is the NodeContext.State key GraphRunner stashes the run's
// ExecutionContext under so node implementations can derive a per-node
// child scope without threading it as an extra Run parameter.
const ecStateKey = "__execution_context"

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if c, ok := v.(comm.Comm); ok {
		return c.Content
	}
	return ""
}
