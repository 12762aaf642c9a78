package tool

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flowctl/orchestrator/resultx"
)

// JSONSchemaTool wraps a Tool whose parameter contract is an externally
// supplied JSON Schema document rather than the lightweight Schema map.
// Used for tools sourced from an MCP server or a config-loaded tool
// manifest, where the schema isn't known until load time.
type JSONSchemaTool struct {
	inner  Tool
	schema *jsonschema.Schema
}

// NewJSONSchemaTool compiles rawSchema (a JSON Schema document) and wraps
// inner so every Execute call is validated against it before the
// underlying tool ever sees the params.
func NewJSONSchemaTool(inner Tool, rawSchema []byte) (*JSONSchemaTool, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(inner.Name()+".schema.json", bytes.NewReader(rawSchema)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(inner.Name() + ".schema.json")
	if err != nil {
		return nil, err
	}
	return &JSONSchemaTool{inner: inner, schema: compiled}, nil
}

func (t *JSONSchemaTool) Name() string        { return t.inner.Name() }
func (t *JSONSchemaTool) Description() string { return t.inner.Description() }
func (t *JSONSchemaTool) Schema() Schema      { return t.inner.Schema() }

// Execute marshals params to JSON, validates them against the compiled
// JSON Schema, and only then delegates to the wrapped tool. A validation
// failure is reported the same way ValidateParams reports one: a
// resultx.Error with Code ErrSchemaInvalid.
func (t *JSONSchemaTool) Execute(ctx context.Context, params map[string]any) resultx.Result[Result] {
	encoded, err := json.Marshal(params)
	if err != nil {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrInvalidInput, "parameters are not JSON-encodable").WithSubject(t.Name()).WithCause(err))
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrInvalidInput, "parameters failed to round-trip through JSON").WithSubject(t.Name()).WithCause(err))
	}
	if err := t.schema.Validate(decoded); err != nil {
		return resultx.Fail[Result](resultx.New("tool", resultx.ErrSchemaInvalid, "parameters failed JSON Schema validation").WithSubject(t.Name()).WithCause(err))
	}
	return t.inner.Execute(ctx, params)
}
