package graph

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowctl/orchestrator/agent"
	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/internal/store"
	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/tool"
)

func echoAgentNode(id string, prefix string) *AgentNode {
	a := agent.NewFunc(id, id, "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		return resultx.Ok(msg.Reply(prefix+msg.Content, id))
	})
	return NewAgentNode(id, a, "")
}

func TestLinearGraphRunsToSuccess(t *testing.T) {
	classifier := echoAgentNode("classifier", "classified:")
	finalizer := echoAgentNode("finalizer", "final:")

	g := New("linear", "classifier",
		[]Node{classifier, finalizer},
		[]Edge{{From: "classifier", To: "finalizer"}},
	)

	r := NewRunner()
	res := r.Run(context.Background(), g, map[string]any{"_previous": comm.New("hello", "user", comm.RoleUser)})
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	report := res.Unwrap()
	if report.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", report.Status)
	}
	if len(report.NodeReports) != 2 {
		t.Fatalf("expected 2 node reports, got %d", len(report.NodeReports))
	}
	reply, ok := report.Result.(comm.Comm)
	if !ok || reply.Content != "final:classified:hello" {
		t.Fatalf("unexpected result: %v", report.Result)
	}
}

func TestEdgeOrderingTakesFirstMatch(t *testing.T) {
	entry := echoAgentNode("entry", "x:")
	left := echoAgentNode("left", "left:")
	right := echoAgentNode("right", "right:")

	g := New("branch", "entry",
		[]Node{entry, left, right},
		[]Edge{
			{From: "entry", To: "left", Condition: func(NodeResult) bool { return true }},
			{From: "entry", To: "right", Condition: func(NodeResult) bool { return true }},
		},
	)

	r := NewRunner()
	res := r.Run(context.Background(), g, map[string]any{"_previous": comm.New("hi", "user", comm.RoleUser)})
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	reply := res.Unwrap().Result.(comm.Comm)
	if reply.Content != "left:x:hi" {
		t.Fatalf("expected the first declared matching edge to win, got %q", reply.Content)
	}
}

func TestGraphConstructionPanicsOnDanglingEdge(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New to panic on a dangling edge target")
		}
	}()
	a := echoAgentNode("a", "")
	New("bad", "a", []Node{a}, []Edge{{From: "a", To: "missing"}})
}

func TestGraphConstructionPanicsWithoutTerminal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New to panic when no node is a reachable terminal")
		}
	}()
	a := echoAgentNode("a", "")
	b := echoAgentNode("b", "")
	New("cycle", "a", []Node{a, b}, []Edge{
		{From: "a", To: "b"},
		{From: "b", To: "a"},
	})
}

// TestGraphWithHITLSuspendsAndResumes reproduces S3: classifier -> a HITL
// selection tool -> finalizer. The first run suspends WAITING with a
// resumption token; Resume with a COMPLETED response carries the chosen
// value through to the finalizer.
func TestGraphWithHITLSuspendsAndResumes(t *testing.T) {
	classifier := echoAgentNode("classifier", "classified:")

	hitlTool := tool.NewFunc("hitl_selection", "", nil, func(ctx context.Context, params map[string]any) resultx.Result[tool.Result] {
		return resultx.Ok(tool.Result{
			Status: tool.StatusWaitingHITL,
			Metadata: map[string]any{
				"hitl_tool_call_id": "call-1",
				"options":           []string{"A", "B"},
			},
		})
	})
	hitlNode := NewToolNode("select", hitlTool, nil)

	finalizer := agent.NewFunc("finalizer", "finalizer", "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		return resultx.Ok(msg.Reply(fmt.Sprintf("final:%s", msg.Content), "finalizer"))
	})
	finalizerNode := NewAgentNode("finalizer", finalizer, "")

	g := New("hitl-flow", "classifier",
		[]Node{classifier, hitlNode, finalizerNode},
		[]Edge{
			{From: "classifier", To: "select"},
			{From: "select", To: "finalizer"},
		},
	)

	cp := store.NewMemoryCheckpointStore()
	r := &Runner{Checkpoint: cp, MetadataPolicy: DefaultMetadataPolicy()}

	res := r.Run(context.Background(), g, map[string]any{"_previous": comm.New("classify this", "user", comm.RoleUser)})
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	first := res.Unwrap()
	if first.Status != StatusWaiting {
		t.Fatalf("expected WAITING, got %s", first.Status)
	}
	if first.ResumptionToken == "" {
		t.Fatal("expected a non-empty resumption token")
	}

	resumed := r.Resume(context.Background(), g, first.ResumptionToken, ResumeResponse{Status: tool.StatusSuccess, Value: "A"})
	if !resumed.IsSuccess() {
		t.Fatalf("expected resume to succeed, got %v", resumed.Err())
	}
	report := resumed.Unwrap()
	if report.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after resume, got %s", report.Status)
	}
	reply, ok := report.Result.(comm.Comm)
	if !ok {
		t.Fatalf("expected a comm.Comm result, got %T", report.Result)
	}
	if reply.Content != "final:A" {
		t.Fatalf("expected the resumed response value to reach the finalizer, got %q", reply.Content)
	}
}

func TestIdempotencyReplaysWithoutRerunningNodes(t *testing.T) {
	calls := 0
	a := agent.NewFunc("a", "a", "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		calls++
		return resultx.Ok(msg.Reply("done", "a"))
	})
	node := NewAgentNode("a", a, "")
	g := New("idem", "a", []Node{node}, nil)

	r := &Runner{Idempotency: store.NewMemoryIdempotencyStore(), MetadataPolicy: DefaultMetadataPolicy()}
	input := map[string]any{"causationId": "req-1", "_previous": comm.New("x", "user", comm.RoleUser)}

	r.Run(context.Background(), g, input)
	r.Run(context.Background(), g, input)

	if calls != 1 {
		t.Fatalf("expected exactly one node invocation across two idempotent calls, got %d", calls)
	}
}

func TestMiddlewareRecoverRedirectsToRecoveryNode(t *testing.T) {
	failing := NewAgentNode("risky", agent.NewFunc("risky", "risky", "", nil, func(ctx context.Context, msg comm.Comm) resultx.Result[comm.Comm] {
		return resultx.Fail[comm.Comm](resultx.New("graph", resultx.ErrExecution, "boom"))
	}), "")
	recovery := echoAgentNode("recovery", "recovered:")

	mw := Middleware{OnError: func(err *resultx.Error, rc RunContext) ErrorDecision {
		return ErrorDecision{Action: Recover, RecoveryNode: "recovery"}
	}}

	g := New("recover", "risky", []Node{failing, recovery}, nil, mw)
	r := NewRunner()
	res := r.Run(context.Background(), g, map[string]any{"_previous": comm.New("x", "user", comm.RoleUser)})
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %v", res.Err())
	}
	report := res.Unwrap()
	if report.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after recovery, got %s", report.Status)
	}
	reply := report.Result.(comm.Comm)
	if reply.Content != "recovered:x" {
		t.Fatalf("unexpected content: %q", reply.Content)
	}
}

func TestTransformerContinueOnFailureGatesSubsequentTransformers(t *testing.T) {
	node := echoAgentNode("a", "")
	g := New("t1", "a", []Node{node}, nil)

	var secondInvoked bool
	halting := Transformer{Name: "halting", ContinueOnFailure: false, BeforeExecution: func(rc RunContext) *resultx.Error {
		return resultx.New("graph", resultx.ErrExecution, "halt")
	}}
	second := Transformer{Name: "second", BeforeExecution: func(rc RunContext) *resultx.Error {
		secondInvoked = true
		return nil
	}}

	r := &Runner{Transformers: []Transformer{halting, second}, MetadataPolicy: DefaultMetadataPolicy()}
	r.Run(context.Background(), g, map[string]any{"_previous": comm.New("x", "user", comm.RoleUser)})

	if secondInvoked {
		t.Fatal("expected a continueOnFailure=false failure to halt subsequent transformers of the same hook")
	}

	secondInvoked = false
	nonHalting := halting
	nonHalting.ContinueOnFailure = true
	r2 := &Runner{Transformers: []Transformer{nonHalting, second}, MetadataPolicy: DefaultMetadataPolicy()}
	r2.Run(context.Background(), g, map[string]any{"_previous": comm.New("x", "user", comm.RoleUser)})

	if !secondInvoked {
		t.Fatal("expected a continueOnFailure=true failure to let subsequent transformers still run")
	}
}

func TestAfterExecutionAlwaysRunsEveryTransformer(t *testing.T) {
	node := echoAgentNode("a", "")
	g := New("t2", "a", []Node{node}, nil)

	var invoked []string
	t1 := Transformer{Name: "t1", AfterExecution: func(report RunReport) *resultx.Error {
		invoked = append(invoked, "t1")
		return nil
	}}
	t2 := Transformer{Name: "t2", AfterExecution: func(report RunReport) *resultx.Error {
		invoked = append(invoked, "t2")
		return resultx.New("graph", resultx.ErrExecution, "t2 fails")
	}}
	t3 := Transformer{Name: "t3", AfterExecution: func(report RunReport) *resultx.Error {
		invoked = append(invoked, "t3")
		return nil
	}}

	r := &Runner{Transformers: []Transformer{t1, t2, t3}, MetadataPolicy: DefaultMetadataPolicy()}
	r.Run(context.Background(), g, map[string]any{"_previous": comm.New("x", "user", comm.RoleUser)})

	if len(invoked) != 3 {
		t.Fatalf("expected all three afterExecution transformers to run even though t2 failed, got %v", invoked)
	}
}
