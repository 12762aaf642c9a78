package resultx

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes a failure for retry logic and error handling, the same
// role a tool-error-type enum plays for tool failures, generalized here
// to cover every component that reports a Result.
type Code string

const (
	ErrNotFound      Code = "not_found"
	ErrInvalidInput  Code = "invalid_input"
	ErrTimeout       Code = "timeout"
	ErrNetwork       Code = "network"
	ErrPermission    Code = "permission"
	ErrRateLimit     Code = "rate_limit"
	ErrExecution     Code = "execution"
	ErrPanic         Code = "panic"
	ErrCancelled     Code = "cancelled"
	ErrIdempotent    Code = "idempotent_replay"
	ErrSchemaInvalid Code = "schema_invalid"
	ErrUnknown       Code = "unknown"
)

// Retryable reports whether this error category suggests a retry may
// succeed.
func (c Code) Retryable() bool {
	switch c {
	case ErrTimeout, ErrNetwork, ErrRateLimit:
		return true
	default:
		return false
	}
}

// Error is the concrete failure type carried by Result. It implements the
// standard error interface and Unwrap so callers can use errors.Is/As.
type Error struct {
	Code Code

	// Component names which engine component raised the error
	// ("tool", "agent", "flow", "graph", "eventbus", "hitl").
	Component string

	// Subject is the component-specific identifier (tool name, node ID,
	// agent ID, channel name).
	Subject string

	Message string
	Cause   error

	// Context carries structured diagnostic fields (tool args, node
	// metadata) that don't belong in Message.
	Context map[string]any

	// RetryAfterMs is set by rate-limit producers.
	RetryAfterMs int64

	// Attempts records how many tries were made before this error was final.
	Attempts int
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s:%s]", e.Component, e.Code))
	if e.Subject != "" {
		parts = append(parts, e.Subject)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether this specific error should be retried.
func (e *Error) Retryable() bool { return e.Code.Retryable() }

// New builds an Error directly with an explicit code.
func New(component string, code Code, message string) *Error {
	return &Error{Component: component, Code: code, Message: message}
}

// WithSubject sets the Subject field and returns the error for chaining.
func (e *Error) WithSubject(subject string) *Error {
	e.Subject = subject
	return e
}

// WithCause attaches an underlying cause and returns the error for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithContext merges a diagnostic field into Context and returns the error
// for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// FromException classifies a generic error into an Error with an inferred
// Code: sentinel checks first, then message substring heuristics as a
// fallback for errors
// originating outside this module (third-party clients, stdlib I/O).
func FromException(component string, cause error) *Error {
	e := &Error{Component: component, Cause: cause, Code: ErrUnknown, Attempts: 1}
	if cause == nil {
		return e
	}
	e.Message = cause.Error()
	e.Code = classify(cause)
	return e
}

func classify(err error) Code {
	if err == nil {
		return ErrUnknown
	}
	if errors.Is(err, ErrCancelledSentinel) {
		return ErrCancelled
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return ErrTimeout
	case strings.Contains(s, "connection") || strings.Contains(s, "network") ||
		strings.Contains(s, "dns") || strings.Contains(s, "refused") || strings.Contains(s, "unreachable"):
		return ErrNetwork
	case strings.Contains(s, "rate limit") || strings.Contains(s, "rate_limit") ||
		strings.Contains(s, "too many requests") || strings.Contains(s, "429"):
		return ErrRateLimit
	case strings.Contains(s, "permission") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "access denied"):
		return ErrPermission
	case strings.Contains(s, "invalid") || strings.Contains(s, "validation") ||
		strings.Contains(s, "required") || strings.Contains(s, "missing"):
		return ErrInvalidInput
	case strings.Contains(s, "not found"):
		return ErrNotFound
	default:
		return ErrExecution
	}
}

// ErrCancelledSentinel is matched by FromException via errors.Is; callers
// that produce cancellation errors should wrap this sentinel.
var ErrCancelledSentinel = errors.New("resultx: cancelled")

// As extracts an *Error from an error chain using errors.As.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is (or wraps) an *Error with the given Code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
