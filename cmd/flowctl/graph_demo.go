package main

import (
	"context"
	"strings"

	"github.com/flowctl/orchestrator/agent"
	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/graph"
	"github.com/flowctl/orchestrator/hitl"
	"github.com/flowctl/orchestrator/internal/observability"
	"github.com/flowctl/orchestrator/resultx"
)

// triageBuilder resolves the node refs and condition names a ticket-triage
// graph definition file can use. buildTriageGraph's bundled definition and
// any user-supplied --graph file share this same set: a definition is only
// a topology (IDs, refs, edges), the refs it names still resolve to the
// Go-implemented nodes and conditions registered here.
func triageBuilder(logger *observability.Logger) *graph.Builder {
	outputFn := func(nc *graph.NodeContext) any {
		if c, ok := nc.Previous().(comm.Comm); ok {
			return c.Content
		}
		return nc.Previous()
	}
	return graph.NewBuilder().
		RegisterNode("classifier", func(id string) graph.Node {
			return graph.NewAgentNode(id, classifierAgent(logger), "ticket")
		}).
		RegisterNode("hitl_selection", func(id string) graph.Node {
			return graph.NewToolNode(id, hitl.NewSelectionTool("request_human_input", loggingEmitter(logger)), escalateParams)
		}).
		RegisterNode("finalizer", func(id string) graph.Node {
			return graph.NewAgentNode(id, finalizerAgent(logger), "")
		}).
		RegisterNode("output", func(id string) graph.Node {
			return graph.NewOutputNode(id, outputFn)
		}).
		RegisterCondition("needs_human", needsHuman)
}

// bundledTriageDefinition is the topology buildTriageGraph assembles when
// no external --graph file is supplied: a classifier agent decides whether
// a support ticket needs a human call, a HITL tool node suspends the run
// for that decision when it does, and a finalizer agent drafts the reply
// once a decision (human or automatic) is known.
var bundledTriageDefinition = &graph.Definition{
	ID:         "ticket-triage",
	EntryPoint: "classify",
	Nodes: []graph.NodeDef{
		{ID: "classify", Type: "agent", Ref: "classifier"},
		{ID: "escalate", Type: "tool", Ref: "hitl_selection"},
		{ID: "finalize", Type: "agent", Ref: "finalizer"},
		{ID: "output", Type: "output", Ref: "output"},
	},
	Edges: []graph.EdgeDef{
		{From: "classify", To: "escalate", Condition: "needs_human"},
		{From: "classify", To: "finalize"},
		{From: "escalate", To: "finalize"},
		{From: "finalize", To: "output"},
	},
}

// buildTriageGraph assembles the demo graph from defPath if given, or from
// the bundled definition above otherwise.
func buildTriageGraph(logger *observability.Logger, defPath string) (*graph.Graph, error) {
	def := bundledTriageDefinition
	if defPath != "" {
		loaded, err := graph.LoadDefinition(defPath)
		if err != nil {
			return nil, err
		}
		def = loaded
	}
	return triageBuilder(logger).Build(def)
}

// needsHuman routes to the escalate node when the classifier flagged the
// ticket for a human decision.
func needsHuman(result graph.NodeResult) bool {
	c, ok := result.Data.(comm.Comm)
	if !ok {
		return false
	}
	v, ok := c.DataValue("needs_human")
	return ok && v == true
}

func escalateParams(nc *graph.NodeContext) map[string]any {
	ticket, _ := nc.State["classify"].(comm.Comm)
	return map[string]any{
		"tool_call_id":    nc.RunID,
		"prompt":          "Ticket needs a decision: " + ticket.Content,
		"options":         []any{"refund", "deny", "escalate"},
		"allow_free_text": false,
		"selection_type":  "single",
	}
}

var escalationKeywords = []string{"refund", "cancel", "chargeback", "legal", "urgent"}

// classifierAgent flags a ticket as needing a human decision when its
// content mentions a keyword the automatic path can't safely resolve.
func classifierAgent(logger *observability.Logger) agent.Agent {
	return agent.NewFunc("classifier", "Classifier", "flags tickets that need a human decision", []string{"classify"},
		func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
			lower := strings.ToLower(msg.Content)
			needsHuman := false
			for _, kw := range escalationKeywords {
				if strings.Contains(lower, kw) {
					needsHuman = true
					break
				}
			}
			logger.Info(ctx, "ticket classified", "needs_human", needsHuman)
			reply := msg.Reply(msg.Content, "classifier").WithData("needs_human", needsHuman)
			return resultx.Ok(reply)
		})
}

// finalizerAgent drafts a closing reply once a decision is known, whether
// that decision came from the automatic path or a resumed HITL response.
func finalizerAgent(logger *observability.Logger) agent.Agent {
	return agent.NewFunc("finalizer", "Finalizer", "drafts the closing reply", []string{"finalize"},
		func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
			decision := msg.Content
			if decision == "" {
				decision = "resolved automatically"
			}
			logger.Info(ctx, "ticket finalized", "decision", decision)
			return resultx.Ok(msg.Reply("decision: "+decision, "finalizer"))
		})
}

// loggingEmitter publishes a HITL request by logging it; a real deployment
// would route this through hitl.EventBusEmitter to an external UI instead.
func loggingEmitter(logger *observability.Logger) hitl.Emitter {
	return hitl.EmitterFunc(func(ctx context.Context, req hitl.Request) error {
		logger.Info(ctx, "human input requested", "tool_call_id", req.ToolCallID, "prompt", req.Prompt, "options", req.Options)
		return nil
	})
}
