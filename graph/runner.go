package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowctl/orchestrator/internal/store"
	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/rtcontext"
	"github.com/flowctl/orchestrator/tool"
)

// RunStatus is a graph run's position in its execution state machine:
// PENDING -> RUNNING -> {WAITING | SUCCESS | FAILED | CANCELLED}, with
// WAITING able to transition back to RUNNING on HITL resume. Terminal
// states (SUCCESS, FAILED, CANCELLED) are final.
type RunStatus string

const (
	StatusPending   RunStatus = "PENDING"
	StatusRunning   RunStatus = "RUNNING"
	StatusWaiting   RunStatus = "WAITING"
	StatusSuccess   RunStatus = "SUCCESS"
	StatusFailed    RunStatus = "FAILED"
	StatusCancelled RunStatus = "CANCELLED"
)

// NodeReport records one node's execution within a run.
type NodeReport struct {
	NodeID    string
	StartTime time.Time
	Duration  time.Duration
	Status    RunStatus
	Output    any
}

// RunReport is GraphRunner.Run/Resume's result.
type RunReport struct {
	GraphID         string
	RunID           string
	Status          RunStatus
	Result          any
	Duration        time.Duration
	NodeReports     []NodeReport
	Error           *resultx.Error
	ResumptionToken string
}

// OverflowAction governs NodeResult.Metadata size policy enforcement.
type OverflowAction string

const (
	OverflowWarn   OverflowAction = "WARN"
	OverflowFail   OverflowAction = "FAIL"
	OverflowIgnore OverflowAction = "IGNORE"
)

// MetadataPolicy enforces a soft-size limit on NodeResult.Metadata. The
// default (HardLimit=0, WarnThreshold=5KB, OnOverflow=WARN) never fails a
// run over metadata size alone, a default nobody has asked to tighten yet.
type MetadataPolicy struct {
	WarnThreshold int
	HardLimit     int
	OnOverflow    OverflowAction
	OnWarn        func(nodeID string, size int)
}

// DefaultMetadataPolicy returns the policy applied when a GraphRunner is
// built without an explicit one.
func DefaultMetadataPolicy() MetadataPolicy {
	return MetadataPolicy{WarnThreshold: 5 * 1024, HardLimit: 0, OnOverflow: OverflowWarn}
}

// EventSink receives graph lifecycle events when enabled. Publish is
// called synchronously from the node loop; implementations wanting
// asynchronous delivery should hand off to their own queue.
type EventSink interface {
	Publish(eventType string, payload any)
}

// NodeExecutionEvent and the event types below are the payload shapes a
// run emits; EventSink implementations are free to interpret them however
// they serialize.
type NodeExecutionEvent struct {
	GraphID, NodeID, From, To, Event string
	Timestamp                        time.Time
	Metadata                         map[string]any
}

type WorkflowCompletedEvent struct {
	RunID, GraphID string
	FinalState     any
	Timestamp      time.Time
	Metadata       map[string]any
}

type HitlRequiredEvent struct {
	CheckpointID, GraphID, NodeID string
	Options                       []string
}

type StateChangeEvent struct {
	RunID      string
	From, To   RunStatus
	Timestamp  time.Time
}

// ValidationPipeline is invoked before each node with (nodeID, input);
// failures surface as a ValidationError and take the node-failure path.
type ValidationPipeline interface {
	Validate(nodeID string, input any) *resultx.Error
}

// ResumeResponse is what a caller (typically the hitl package) supplies to
// GraphRunner.Resume. Status COMPLETED maps to tool.StatusSuccess and
// carries Value; TIMEOUT/CANCELLED/ERROR map 1:1 to their ToolResultStatus
// counterparts.
type ResumeResponse struct {
	Status tool.Status
	Value  any
}

// Runner executes Graphs. A Runner may run many Graphs and many
// concurrent runs; nothing on Runner itself is run-scoped.
type Runner struct {
	Checkpoint     store.CheckpointStore
	Idempotency    store.IdempotencyStore
	Validation     ValidationPipeline
	Transformers   []Transformer
	MetadataPolicy MetadataPolicy
	Events         EventSink
}

// NewRunner builds a Runner with the default metadata policy and no
// stores configured (idempotency/checkpointing are opt-in).
func NewRunner() *Runner {
	return &Runner{MetadataPolicy: DefaultMetadataPolicy()}
}

func (r *Runner) emit(eventType string, payload any) {
	if r.Events != nil {
		r.Events.Publish(eventType, payload)
	}
}

// Run executes g from its EntryPoint against input, following a
// four-step lifecycle: start, idempotency check, node loop, finish.
func (r *Runner) Run(ctx context.Context, g *Graph, input map[string]any) resultx.Result[RunReport] {
	runID := uuid.NewString()
	rc := RunContext{GraphID: g.ID, RunID: runID}

	if r.Idempotency != nil {
		if key, ok := causationKey(input); ok {
			if entry, found, err := r.Idempotency.Get(ctx, key); err == nil && found {
				if cached, ok := entry.Snapshot.(RunReport); ok {
					return resultx.Ok(cached)
				}
			}
		}
	}

	state := make(map[string]any, len(input)+1)
	for k, v := range input {
		state[k] = v
	}
	if ec, ok := rtcontext.FromContext(ctx); ok {
		state[ecStateKey] = ec
	}

	nc := &NodeContext{GraphID: g.ID, RunID: runID, State: state}

	runOnStart(g.Middleware, rc)
	r.emit("StateChange", StateChangeEvent{RunID: runID, From: StatusPending, To: StatusRunning, Timestamp: time.Now()})

	if err := runBeforeExecution(r.Transformers, rc); err != nil {
		return resultx.Ok(r.finish(g, runID, StatusFailed, nil, nil, err, ""))
	}

	report := r.loop(ctx, g, nc, g.EntryPoint, rc)

	if r.Idempotency != nil && report.Status != StatusWaiting {
		if key, ok := causationKey(input); ok {
			_ = r.Idempotency.Put(ctx, store.IdempotencyEntry{Key: key, Snapshot: report, CreatedAt: time.Now()})
		}
	}

	return resultx.Ok(report)
}

// Resume loads the checkpoint suspended under token, injects response into
// state as the completed HITL node's output, and continues the node loop
// from the edge-selection step.
func (r *Runner) Resume(ctx context.Context, g *Graph, token string, response ResumeResponse) resultx.Result[RunReport] {
	if r.Checkpoint == nil {
		return resultx.Fail[RunReport](resultx.New("graph", resultx.ErrInvalidInput, "resume requires a configured CheckpointStore"))
	}
	cp, found, err := r.Checkpoint.LoadByToken(ctx, token)
	if err != nil {
		return resultx.Fail[RunReport](resultx.New("graph", resultx.ErrExecution, "failed to load checkpoint").WithCause(err))
	}
	if !found {
		return resultx.Fail[RunReport](resultx.New("graph", resultx.ErrNotFound, "no run suspended under resumption token").WithSubject(token))
	}

	rc := RunContext{GraphID: cp.GraphID, RunID: cp.RunID}
	nc := &NodeContext{GraphID: cp.GraphID, RunID: cp.RunID, State: cp.State}

	result := NodeResult{Data: responseValue(response), Metadata: map[string]any{"resumed": true}}
	nc.State[cp.NodeID] = result.Data
	nc.State["_previous"] = result.Data

	edge, ok := g.NextEdge(cp.NodeID, result)
	if !ok {
		report := r.finish(g, cp.RunID, StatusSuccess, result.Data, nil, nil, "")
		_ = r.Checkpoint.Delete(ctx, cp.RunID)
		return resultx.Ok(report)
	}

	report := r.loop(ctx, g, nc, edge.To, rc)
	return resultx.Ok(report)
}

func responseValue(resp ResumeResponse) any {
	if resp.Status == tool.StatusSuccess {
		return resp.Value
	}
	return nil
}

// loop runs nodes starting at startNode until a terminal, a failure, or a
// WAITING_HITL suspension. Nodes within one run always execute serially.
func (r *Runner) loop(ctx context.Context, g *Graph, nc *NodeContext, startNode string, rc RunContext) RunReport {
	var reports []NodeReport
	currentNode := startNode

	for {
		select {
		case <-ctx.Done():
			reports = append(reports, NodeReport{NodeID: currentNode, StartTime: time.Now(), Status: StatusCancelled})
			return r.finish(g, rc.RunID, StatusCancelled, nc.Previous(), reports, nil, "")
		default:
		}

		node, ok := g.Node(currentNode)
		if !ok {
			err := resultx.New("graph", resultx.ErrInvalidInput, "node not found").WithSubject(currentNode)
			return r.finish(g, rc.RunID, StatusFailed, nil, reports, err, "")
		}

		req := NodeRequest{NodeID: currentNode, Input: nc.Previous(), RunCtx: rc}

		if r.Validation != nil {
			if err := r.Validation.Validate(currentNode, req.Input); err != nil {
				reports = append(reports, NodeReport{NodeID: currentNode, StartTime: time.Now(), Status: StatusFailed})
				return r.finish(g, rc.RunID, StatusFailed, nil, reports, err, "")
			}
		}

		if err := runBeforeNode(r.Transformers, req); err != nil {
			return r.finish(g, rc.RunID, StatusFailed, nil, reports, err, "")
		}

		started := time.Now()
		res := runOnNode(g.Middleware, req, func(req NodeRequest) resultx.Result[NodeResult] {
			return node.Run(nc)
		})
		duration := time.Since(started)

		if res.IsFailure() {
			decision := runOnError(g.Middleware, res.Err(), rc)
			switch decision.Action {
			case Recover:
				reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusFailed})
				currentNode = decision.RecoveryNode
				continue
			case Suppress:
				reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusSuccess, Output: nil})
				nc.State[currentNode] = nil
				nc.State["_previous"] = nil
				edge, ok := g.NextEdge(currentNode, NodeResult{})
				if !ok {
					return r.finish(g, rc.RunID, StatusSuccess, nil, reports, nil, "")
				}
				currentNode = edge.To
				continue
			default:
				reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusFailed})
				return r.finish(g, rc.RunID, StatusFailed, nil, reports, res.Err(), "")
			}
		}

		result := res.Unwrap()
		if overflowErr := r.enforceMetadataPolicy(currentNode, result); overflowErr != nil {
			reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusFailed})
			return r.finish(g, rc.RunID, StatusFailed, nil, reports, overflowErr, "")
		}

		if tr, ok := result.Data.(tool.Result); ok && tr.Status == tool.StatusWaitingHITL {
			token := uuid.NewString()
			if r.Checkpoint != nil {
				_ = r.Checkpoint.Save(ctx, store.Checkpoint{
					RunID: rc.RunID, GraphID: rc.GraphID, NodeID: currentNode,
					State: cloneState(nc.State), Timestamp: time.Now(), PendingResumeToken: token,
				})
			}
			r.emit("HitlRequired", HitlRequiredEvent{CheckpointID: token, GraphID: rc.GraphID, NodeID: currentNode})
			reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusWaiting, Output: tr})
			return RunReport{GraphID: rc.GraphID, RunID: rc.RunID, Status: StatusWaiting, NodeReports: reports, ResumptionToken: token}
		}

		if err := runAfterNode(r.Transformers, req, result); err != nil {
			reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusFailed})
			return r.finish(g, rc.RunID, StatusFailed, nil, reports, err, "")
		}

		nc.State[currentNode] = result.Data
		nc.State["_previous"] = result.Data
		reports = append(reports, NodeReport{NodeID: currentNode, StartTime: started, Duration: duration, Status: StatusSuccess, Output: result.Data})

		r.emit("NodeExecution", NodeExecutionEvent{GraphID: rc.GraphID, NodeID: currentNode, Event: "completed", Timestamp: time.Now(), Metadata: result.Metadata})

		if r.Checkpoint != nil {
			_ = r.Checkpoint.Save(ctx, store.Checkpoint{
				RunID: rc.RunID, GraphID: rc.GraphID, NodeID: currentNode,
				State: cloneState(nc.State), Timestamp: time.Now(),
			})
		}

		edge, ok := g.NextEdge(currentNode, result)
		if !ok {
			return r.finish(g, rc.RunID, StatusSuccess, result.Data, reports, nil, "")
		}
		currentNode = edge.To
	}
}

func (r *Runner) enforceMetadataPolicy(nodeID string, result NodeResult) *resultx.Error {
	policy := r.MetadataPolicy
	if policy.OnOverflow == "" || policy.OnOverflow == OverflowIgnore {
		return nil
	}
	size := estimateMetadataSize(result.Metadata)
	if policy.HardLimit > 0 && size > policy.HardLimit && policy.OnOverflow == OverflowFail {
		return resultx.New("graph", resultx.ErrSchemaInvalid, "node metadata exceeds hard limit").
			WithSubject(nodeID).WithContext("size", size).WithContext("hardLimit", policy.HardLimit)
	}
	if policy.WarnThreshold > 0 && size > policy.WarnThreshold && policy.OnWarn != nil {
		policy.OnWarn(nodeID, size)
	}
	return nil
}

func estimateMetadataSize(m map[string]any) int {
	size := 0
	for k, v := range m {
		size += len(k) + len(fmt.Sprintf("%v", v))
	}
	return size
}

func (r *Runner) finish(g *Graph, runID string, status RunStatus, result any, reports []NodeReport, err *resultx.Error, token string) RunReport {
	var totalDuration time.Duration
	for _, nr := range reports {
		totalDuration += nr.Duration
	}
	report := RunReport{
		GraphID: g.ID, RunID: runID, Status: status, Result: result,
		Duration: totalDuration, NodeReports: reports, Error: err, ResumptionToken: token,
	}
	runAfterExecution(r.Transformers, report)
	runOnFinish(g.Middleware, report)
	r.emit("WorkflowCompleted", WorkflowCompletedEvent{RunID: runID, GraphID: g.ID, FinalState: result, Timestamp: time.Now()})
	return report
}

func causationKey(input map[string]any) (string, bool) {
	v, ok := input["causationId"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func cloneState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		if k == ecStateKey {
			continue
		}
		out[k] = v
	}
	return out
}
