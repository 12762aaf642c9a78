// Package hitl implements human-in-the-loop coordination (C9): a tool
// that suspends a graph run pending a human response, and the plumbing
// that routes that response back to the waiting run. It generalizes an
// event-emitter idiom (sequence-numbered, callback-
// driven event stream) to a request/response round trip mediated by the
// event bus instead of a single callback.
package hitl

import (
	"context"
	"sync"

	"github.com/flowctl/orchestrator/eventbus"
	"github.com/flowctl/orchestrator/graph"
	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/tool"
)

// Request is what a HITL tool emits when it needs a human decision.
type Request struct {
	ToolCallID    string
	Prompt        string
	Options       []string
	AllowFreeText bool
	SelectionType string
}

// ResponseStatus enumerates the allowed outcomes a human responder (or a
// timeout/cancellation path) can report, each mapping 1:1 to a
// tool.Status.
type ResponseStatus string

const (
	ResponseCompleted ResponseStatus = "COMPLETED"
	ResponseTimeout    ResponseStatus = "TIMEOUT"
	ResponseCancelled  ResponseStatus = "CANCELLED"
	ResponseError      ResponseStatus = "ERROR"
)

func (s ResponseStatus) toolStatus() tool.Status {
	switch s {
	case ResponseCompleted:
		return tool.StatusSuccess
	case ResponseTimeout:
		return tool.StatusTimeout
	case ResponseCancelled:
		return tool.StatusCancelled
	default:
		return tool.StatusError
	}
}

// Response is what an external resumer (event subscriber or HTTP handler)
// delivers back for a pending ToolCallID.
type Response struct {
	ToolCallID string
	Status     ResponseStatus
	Value      any
}

// Emitter is the port a HITL tool publishes requests through. An
// EventBusEmitter is the default implementation, but tests may supply a
// func-backed fake.
type Emitter interface {
	EmitRequest(ctx context.Context, req Request) error
}

// EmitterFunc adapts a function into an Emitter.
type EmitterFunc func(ctx context.Context, req Request) error

func (f EmitterFunc) EmitRequest(ctx context.Context, req Request) error { return f(ctx, req) }

// NewSelectionTool builds a Tool that emits a Request through emitter and
// immediately returns ToolResult{status=WAITING_HITL}: "metadata={hitl_tool_call_id, prompt, options,
// allow_free_text, selection_type}".
func NewSelectionTool(name string, emitter Emitter) tool.Tool {
	schema := tool.Schema{
		"tool_call_id":    {Type: tool.ParamString, Required: true},
		"prompt":          {Type: tool.ParamString, Required: true},
		"options":         {Type: tool.ParamArray},
		"allow_free_text": {Type: tool.ParamBool, Default: false},
		"selection_type":  {Type: tool.ParamString, Default: "single"},
	}
	return tool.NewFunc(name, "requests a human selection and suspends the run", schema, func(ctx context.Context, params map[string]any) resultx.Result[tool.Result] {
		req := Request{
			ToolCallID:    params["tool_call_id"].(string),
			Prompt:        params["prompt"].(string),
			AllowFreeText: params["allow_free_text"].(bool),
			SelectionType: params["selection_type"].(string),
		}
		if opts, ok := params["options"].([]any); ok {
			req.Options = make([]string, 0, len(opts))
			for _, o := range opts {
				if s, ok := o.(string); ok {
					req.Options = append(req.Options, s)
				}
			}
		}

		if err := emitter.EmitRequest(ctx, req); err != nil {
			return resultx.Fail[tool.Result](resultx.New("hitl", resultx.ErrExecution, "failed to emit HITL request").WithCause(err))
		}

		return resultx.Ok(tool.Result{
			Status: tool.StatusWaitingHITL,
			Metadata: map[string]any{
				"hitl_tool_call_id": req.ToolCallID,
				"prompt":            req.Prompt,
				"options":           req.Options,
				"allow_free_text":   req.AllowFreeText,
				"selection_type":    req.SelectionType,
			},
		})
	})
}

type pendingRun struct {
	graph *graph.Graph
	token string
}

// Coordinator tracks which graph/resumption-token pair a pending
// ToolCallID belongs to, and drives graph.Runner.Resume once a Response
// for that ToolCallID arrives. A suspended run is tracked only after a
// caller passes it to RegisterPending; the Coordinator does not watch
// runs or their events itself.
type Coordinator struct {
	runner *graph.Runner

	mu      sync.Mutex
	pending map[string]pendingRun
}

// NewCoordinator builds a Coordinator bound to the Runner whose suspended
// runs it will resume.
func NewCoordinator(runner *graph.Runner) *Coordinator {
	return &Coordinator{runner: runner, pending: make(map[string]pendingRun)}
}

// RegisterPending associates toolCallID with the graph/token a run
// suspended under, so a later Response for that call can find its way
// back to the right run.
func (c *Coordinator) RegisterPending(toolCallID string, g *graph.Graph, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[toolCallID] = pendingRun{graph: g, token: token}
}

// Deliver resumes the run pending under resp.ToolCallID. It reifies the
// run via the Runner's CheckpointStore (through Resume), writes resp into
// state, and returns the resumed RunReport, completing the response
// round trip. A response for an unknown or already-resumed ToolCallID
// fails with ErrNotFound.
func (c *Coordinator) Deliver(ctx context.Context, resp Response) resultx.Result[graph.RunReport] {
	c.mu.Lock()
	pr, ok := c.pending[resp.ToolCallID]
	if ok {
		delete(c.pending, resp.ToolCallID)
	}
	c.mu.Unlock()

	if !ok {
		return resultx.Fail[graph.RunReport](resultx.New("hitl", resultx.ErrNotFound, "no run pending for tool call").WithSubject(resp.ToolCallID))
	}

	return c.runner.Resume(ctx, pr.graph, pr.token, graph.ResumeResponse{
		Status: resp.Status.toolStatus(),
		Value:  resp.Value,
	})
}

// EventBusEmitter publishes Requests onto a "hitl.requests" event bus
// channel rather than holding a direct reference to an HTTP client or
// websocket hub, so the HITL frontend is decoupled from the tool itself.
type EventBusEmitter struct {
	channel *eventbus.Channel
}

// NewEventBusEmitter wraps an already-constructed channel (its schema
// must already be registered for the request event type/version).
func NewEventBusEmitter(channel *eventbus.Channel) *EventBusEmitter {
	return &EventBusEmitter{channel: channel}
}

func (e *EventBusEmitter) EmitRequest(ctx context.Context, req Request) error {
	res := e.channel.Publish(req, nil)
	if res.IsFailure() {
		return res.Err()
	}
	return nil
}

// ResponseListener subscribes to a response channel and forwards every
// decoded Response to a Coordinator: the listener on that channel.
type ResponseListener struct {
	sub         *eventbus.TypedSubscription[*Response]
	coordinator *Coordinator
}

// NewResponseListener subscribes to channel for *Response payloads.
func NewResponseListener(channel *eventbus.Channel, coordinator *Coordinator) *ResponseListener {
	return &ResponseListener{sub: eventbus.Subscribe[*Response](channel), coordinator: coordinator}
}

// Run blocks, delivering responses to the Coordinator until done closes.
func (l *ResponseListener) Run(ctx context.Context, done <-chan struct{}) {
	for {
		resp, ok := l.sub.Next(done)
		if !ok {
			return
		}
		l.coordinator.Deliver(ctx, *resp)
	}
}

// Stop cancels the underlying subscription.
func (l *ResponseListener) Stop() { l.sub.Cancel() }
