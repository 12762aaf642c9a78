package tool

import (
	"fmt"

	"github.com/flowctl/orchestrator/resultx"
)

// OutputRule validates a tool's Result.Value after execution. A rule
// returns a non-empty reason on failure.
type OutputRule func(value any) (reason string, ok bool)

// RequireField returns a rule that fails unless value is a
// map[string]any containing key.
func RequireField(key string) OutputRule {
	return func(value any) (string, bool) {
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Sprintf("output is not an object, cannot check field %q", key), false
		}
		if _, present := m[key]; !present {
			return fmt.Sprintf("output missing required field %q", key), false
		}
		return "", true
	}
}

// FieldType returns a rule that fails unless value[key] matches the given
// ParamType.
func FieldType(key string, t ParamType) OutputRule {
	return func(value any) (string, bool) {
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Sprintf("output is not an object, cannot check type of %q", key), false
		}
		v, present := m[key]
		if !present {
			return fmt.Sprintf("output missing field %q", key), false
		}
		if !matchesType(t, v) {
			return fmt.Sprintf("field %q has wrong type, expected %s", key, t), false
		}
		return "", true
	}
}

// Custom wraps an arbitrary predicate as an OutputRule.
func Custom(description string, predicate func(value any) bool) OutputRule {
	return func(value any) (string, bool) {
		if !predicate(value) {
			return description, false
		}
		return "", true
	}
}

// OutputValidator is an ordered chain of OutputRules run against a Result's
// Value. Validate stops at the first failing rule and converts the Result
// to StatusError.
type OutputValidator struct {
	rules []OutputRule
}

// NewOutputValidator builds a validator from an ordered rule list.
func NewOutputValidator(rules ...OutputRule) *OutputValidator {
	return &OutputValidator{rules: rules}
}

// Validate runs the chain against res. On the first failing rule, it
// returns a new Result with Status=ERROR, the failure reason as Message,
// and ErrCode schema_invalid; a passing chain returns res unchanged.
func (v *OutputValidator) Validate(res Result) Result {
	if v == nil || res.Status != StatusSuccess {
		return res
	}
	for _, rule := range v.rules {
		if reason, ok := rule(res.Value); !ok {
			return Result{
				Status:  StatusError,
				Message: reason,
				ErrCode: string(resultx.ErrSchemaInvalid),
			}
		}
	}
	return res
}
