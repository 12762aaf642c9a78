package tool

import (
	"context"
	"testing"

	"github.com/flowctl/orchestrator/resultx"
)

func echoFunc() *Func {
	return NewFunc("echo", "echoes its input", Schema{}, func(ctx context.Context, params map[string]any) resultx.Result[Result] {
		return resultx.Ok(Result{Status: StatusSuccess, Value: params})
	})
}

func TestJSONSchemaToolAcceptsValidParams(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"required": ["query"],
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": "integer", "minimum": 1}
		}
	}`)

	wrapped, err := NewJSONSchemaTool(echoFunc(), raw)
	if err != nil {
		t.Fatalf("NewJSONSchemaTool() error = %v", err)
	}

	res := wrapped.Execute(context.Background(), map[string]any{"query": "hello", "limit": float64(5)})
	if res.IsFailure() {
		t.Fatalf("expected success, got error: %v", res.Err())
	}
}

func TestJSONSchemaToolRejectsMissingRequiredField(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"required": ["query"],
		"properties": {
			"query": {"type": "string"}
		}
	}`)

	wrapped, err := NewJSONSchemaTool(echoFunc(), raw)
	if err != nil {
		t.Fatalf("NewJSONSchemaTool() error = %v", err)
	}

	res := wrapped.Execute(context.Background(), map[string]any{"limit": float64(5)})
	if !res.IsFailure() {
		t.Fatal("expected a validation error for a missing required field")
	}
	rerr := res.Err()
	if rerr.Code != resultx.ErrSchemaInvalid {
		t.Errorf("expected Code=%s, got %s", resultx.ErrSchemaInvalid, rerr.Code)
	}
}

func TestJSONSchemaToolRejectsWrongType(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer"}
		}
	}`)

	wrapped, err := NewJSONSchemaTool(echoFunc(), raw)
	if err != nil {
		t.Fatalf("NewJSONSchemaTool() error = %v", err)
	}

	res := wrapped.Execute(context.Background(), map[string]any{"limit": "not-a-number"})
	if !res.IsFailure() {
		t.Fatal("expected a validation error for a wrong-typed field")
	}
}

func TestNewJSONSchemaToolRejectsInvalidSchema(t *testing.T) {
	_, err := NewJSONSchemaTool(echoFunc(), []byte(`{not json`))
	if err == nil {
		t.Fatal("expected an error compiling an invalid schema document")
	}
}
