package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies tool failures for the error taxonomy.
type ErrorKind string

const (
	// KindTransientExhausted: transient failures persisted through all
	// retry attempts.
	KindTransientExhausted ErrorKind = "transient-exhausted"
	// KindPermanent: schema rejections, upstream 4xx. Never retried.
	KindPermanent ErrorKind = "permanent"
	// KindBudget: the per-analyst budget or dedup rule rejected the call.
	KindBudget ErrorKind = "budget"
	// KindUnknownTool: the tool name is not registered.
	KindUnknownTool ErrorKind = "unknown-tool"
)

// ToolError is the error surface of the invoker. Analysts render it into an
// error Tool message rather than aborting the loop.
type ToolError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error (%s): %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// PermanentError wraps an error a tool knows is not retryable.
type PermanentError struct {
	Cause error
}

func (e *PermanentError) Error() string { return e.Cause.Error() }
func (e *PermanentError) Unwrap() error { return e.Cause }

// isTransient reports whether err belongs to the retryable class.
// Tools may override via TransientClassifier; the default treats
// network/timeout errors as transient and everything else as permanent.
func isTransient(tool Tool, err error) bool {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if tc, ok := tool.(TransientClassifier); ok {
		return tc.IsTransientError(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
