package hitl

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowctl/orchestrator/agent"
	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/graph"
	"github.com/flowctl/orchestrator/internal/store"
	"github.com/flowctl/orchestrator/resultx"
)

// TestHitlRoundTripResumesGraphToSuccess reproduces S3 end-to-end through
// the hitl package: a graph suspends on a selection tool, the tool's
// emitted Request is captured, RegisterPending wires the Coordinator to
// the suspended run, and Delivering a COMPLETED Response resumes the run
// to SUCCESS carrying the selected value.
func TestHitlRoundTripResumesGraphToSuccess(t *testing.T) {
	classifier := agent.NewFunc("classifier", "classifier", "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		return resultx.Ok(msg.Reply("classified:"+msg.Content, "classifier"))
	})
	classifierNode := graph.NewAgentNode("classifier", classifier, "")

	var captured Request
	emitter := EmitterFunc(func(ctx context.Context, req Request) error {
		captured = req
		return nil
	})
	selectionTool := NewSelectionTool("hitl_selection", emitter)
	selectNode := graph.NewToolNode("select", selectionTool, func(nc *graph.NodeContext) map[string]any {
		return map[string]any{
			"tool_call_id": "call-1",
			"prompt":       "pick one",
			"options":      []any{"A", "B"},
		}
	})

	finalizer := agent.NewFunc("finalizer", "finalizer", "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		return resultx.Ok(msg.Reply(fmt.Sprintf("final:%s", msg.Content), "finalizer"))
	})
	finalizerNode := graph.NewAgentNode("finalizer", finalizer, "")

	g := graph.New("hitl-flow", "classifier",
		[]graph.Node{classifierNode, selectNode, finalizerNode},
		[]graph.Edge{
			{From: "classifier", To: "select"},
			{From: "select", To: "finalizer"},
		},
	)

	runner := &graph.Runner{Checkpoint: store.NewMemoryCheckpointStore(), MetadataPolicy: graph.DefaultMetadataPolicy()}
	coordinator := NewCoordinator(runner)

	res := runner.Run(context.Background(), g, map[string]any{"_previous": comm.New("classify this", "user", comm.RoleUser)})
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	first := res.Unwrap()
	if first.Status != graph.StatusWaiting {
		t.Fatalf("expected WAITING, got %s", first.Status)
	}
	if captured.ToolCallID != "call-1" || len(captured.Options) != 2 {
		t.Fatalf("expected the emitted request to carry tool_call_id and options, got %+v", captured)
	}

	coordinator.RegisterPending(captured.ToolCallID, g, first.ResumptionToken)

	resumed := coordinator.Deliver(context.Background(), Response{ToolCallID: "call-1", Status: ResponseCompleted, Value: "A"})
	if !resumed.IsSuccess() {
		t.Fatalf("expected deliver to succeed, got %v", resumed.Err())
	}
	report := resumed.Unwrap()
	if report.Status != graph.StatusSuccess {
		t.Fatalf("expected SUCCESS after delivery, got %s", report.Status)
	}
	reply, ok := report.Result.(comm.Comm)
	if !ok || reply.Content != "final:A" {
		t.Fatalf("unexpected result: %v", report.Result)
	}
}

func TestDeliverFailsForUnknownToolCallID(t *testing.T) {
	runner := &graph.Runner{MetadataPolicy: graph.DefaultMetadataPolicy()}
	coordinator := NewCoordinator(runner)

	res := coordinator.Deliver(context.Background(), Response{ToolCallID: "missing", Status: ResponseCompleted})
	if res.IsSuccess() {
		t.Fatal("expected failure for an unregistered tool call id")
	}
	if res.Err().Code != resultx.ErrNotFound {
		t.Fatalf("unexpected error code: %s", res.Err().Code)
	}
}

func TestDeliverIsOneShotPerToolCallID(t *testing.T) {
	a := agent.NewFunc("a", "a", "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		return resultx.Ok(msg.Reply("ok", "a"))
	})
	node := graph.NewAgentNode("a", a, "")
	g := graph.New("solo", "a", []graph.Node{node}, nil)

	emitter := EmitterFunc(func(ctx context.Context, req Request) error { return nil })
	selectionTool := NewSelectionTool("hitl_selection", emitter)
	_ = selectionTool

	runner := &graph.Runner{Checkpoint: store.NewMemoryCheckpointStore(), MetadataPolicy: graph.DefaultMetadataPolicy()}
	coordinator := NewCoordinator(runner)
	coordinator.RegisterPending("call-1", g, "tok-1")

	first := coordinator.Deliver(context.Background(), Response{ToolCallID: "call-1", Status: ResponseError})
	if first.IsSuccess() {
		t.Fatalf("expected delivery to fail because no checkpoint was saved under tok-1, got %v", first.Unwrap())
	}

	second := coordinator.Deliver(context.Background(), Response{ToolCallID: "call-1", Status: ResponseCompleted})
	if second.IsSuccess() {
		t.Fatal("expected a second delivery for the same tool call id to fail: the pending entry was already consumed")
	}
	if second.Err().Code != resultx.ErrNotFound {
		t.Fatalf("unexpected error code on replay: %s", second.Err().Code)
	}
}
