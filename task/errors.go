package task

import "fmt"

// ErrorKind is the closed taxonomy of execution failures (§7). It is a
// kind, not a Go type hierarchy: every failure surfaces as *ExecutionError
// with one of these kinds, so callers branch on Kind rather than on the
// concrete error type.
type ErrorKind string

// Recognized error kinds (§7).
const (
	ErrKindConfig    ErrorKind = "config"
	ErrKindProvider  ErrorKind = "provider"
	ErrKindTool      ErrorKind = "tool"
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindCancelled ErrorKind = "cancelled"
	ErrKindBudget    ErrorKind = "budget"
	ErrKindScript    ErrorKind = "script"
	ErrKindInput     ErrorKind = "input"
	ErrKindOutput    ErrorKind = "output"
)

// ExecutionError is the single error type used across the core. Kind
// drives retry and propagation decisions (§7); Message is human-readable;
// Cause, when set, is the underlying provider/transport error.
type ExecutionError struct {
	Kind     ErrorKind
	Message  string
	Provider string
	// Partial carries any content collected before the failure (e.g. a
	// partial stream) so a caller can show "what we got before it died".
	Partial string
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Retryable reports whether the Executor should attempt another attempt
// after this failure (§7). Config, Cancelled, and Budget are always
// terminal; Provider/Timeout/Script are retryable subject to the
// Executor's pattern matching (see isRetryable in package executor).
func (e *ExecutionError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ErrKindProvider, ErrKindTimeout, ErrKindScript:
		return true
	default:
		return false
	}
}

// NewExecutionError constructs an *ExecutionError with the given kind and
// message.
func NewExecutionError(kind ErrorKind, message string) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message}
}

// WrapExecutionError constructs an *ExecutionError wrapping cause.
func WrapExecutionError(kind ErrorKind, message string, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message, Cause: cause}
}
