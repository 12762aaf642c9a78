// Package tool implements the Tool contract (C4): named, schema-validated
// callables an agent or graph node can invoke, plus the registry, cache,
// and policy layers that wrap them. It generalizes a prior chat-agent's
// tool subsystem (tool_registry.go, tool_exec.go,
// tool_result_guard.go) away from the chat-channel domain.
package tool

import (
	"context"

	"github.com/flowctl/orchestrator/resultx"
	"github.com/flowctl/orchestrator/rtcontext"
)

// Status is the outcome of a tool execution.
type Status string

const (
	StatusSuccess     Status = "SUCCESS"
	StatusError       Status = "ERROR"
	StatusWaitingHITL Status = "WAITING_HITL"
	StatusTimeout     Status = "TIMEOUT"
	StatusCancelled   Status = "CANCELLED"
)

// Result is what a Tool.Execute call produces on success (a Result[Result]
// from resultx's perspective: the outer Result captures exceptions at the
// boundary, this inner Result carries the tool-domain outcome).
type Result struct {
	Status   Status
	Value    any
	Message  string
	ErrCode  string
	Metadata map[string]any
}

// ParamType enumerates the primitive JSON-ish types a tool parameter may
// declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBool    ParamType = "boolean"
	ParamObject  ParamType = "object"
	ParamArray   ParamType = "array"
	ParamAny     ParamType = "any"
)

// ParamSchema describes one named parameter of a Tool.
type ParamSchema struct {
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// Schema is the full parameter schema for a Tool, keyed by parameter name.
type Schema map[string]ParamSchema

// Tool is a named callable with a declared parameter schema.
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, params map[string]any) resultx.Result[Result]
}

// Func adapts a plain function into a Tool, the common case for small
// built-in tools that don't need a dedicated type.
type Func struct {
	name        string
	description string
	schema      Schema
	fn          func(ctx context.Context, params map[string]any) resultx.Result[Result]
}

// NewFunc builds a Tool from a name, description, schema, and execute
// function.
func NewFunc(name, description string, schema Schema, fn func(ctx context.Context, params map[string]any) resultx.Result[Result]) *Func {
	return &Func{name: name, description: description, schema: schema, fn: fn}
}

func (f *Func) Name() string        { return f.name }
func (f *Func) Description() string { return f.description }
func (f *Func) Schema() Schema      { return f.schema }

func (f *Func) Execute(ctx context.Context, params map[string]any) resultx.Result[Result] {
	validated, verr := ValidateParams(f.schema, params)
	if verr != nil {
		return resultx.Fail[Result](verr)
	}
	// Protect the caller's map: the contract says a tool must not mutate
	// the parameter map it was given.
	return f.fn(ctx, validated)
}

// ValidateParams checks params against schema, returning a copy with
// defaults applied for missing optional fields. Missing required fields
// and wrong-typed fields produce a resultx.Error with Code
// ErrSchemaInvalid, carrying the field, expected type, and actual value
// in Context.
func ValidateParams(schema Schema, params map[string]any) (map[string]any, *resultx.Error) {
	out := make(map[string]any, len(params)+len(schema))
	for k, v := range params {
		out[k] = v
	}

	for name, ps := range schema {
		v, present := out[name]
		if !present {
			if ps.Required {
				return nil, resultx.New("tool", resultx.ErrSchemaInvalid, "missing required parameter").
					WithContext("field", name).WithContext("expectedType", string(ps.Type))
			}
			if ps.Default != nil {
				out[name] = ps.Default
			}
			continue
		}
		if ps.Type != "" && ps.Type != ParamAny && !matchesType(ps.Type, v) {
			return nil, resultx.New("tool", resultx.ErrSchemaInvalid, "parameter has wrong type").
				WithContext("field", name).
				WithContext("expectedType", string(ps.Type)).
				WithContext("actualValue", v)
		}
	}
	return out, nil
}

func matchesType(t ParamType, v any) bool {
	switch t {
	case ParamString:
		_, ok := v.(string)
		return ok
	case ParamNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case ParamBool:
		_, ok := v.(bool)
		return ok
	case ParamObject:
		_, ok := v.(map[string]any)
		return ok
	case ParamArray:
		_, ok := v.([]any)
		return ok
	default:
		return true
	}
}

// RunID is a convenience re-export so callers of tool.Execute don't need to
// import rtcontext directly just to read the ambient run ID for logging.
func RunID(ctx context.Context) string { return rtcontext.RunID(ctx) }
