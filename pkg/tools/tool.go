// Package tools defines the uniform tool interface the engine exposes to
// data adapters, the per-analyst toolkits, and the invoker that enforces
// budgets, deduplication, caching, timeouts, and retries.
package tools

import (
	"context"
	"fmt"
)

// Tool is a named external function with a JSON-schema argument contract.
// Implementations must be safe for concurrent invocation.
type Tool interface {
	// Name returns the globally unique tool name.
	Name() string

	// Description explains the tool to the LLM.
	Description() string

	// ArgsSchema returns the JSON schema for the tool's arguments.
	ArgsSchema() map[string]any

	// Invoke executes the tool. ctx carries the per-call timeout and the
	// session deadline for cooperative cancellation.
	Invoke(ctx context.Context, args map[string]any) (*Result, error)
}

// TransientClassifier is optionally implemented by tools that can classify
// their own errors. Without it, network/timeout classes are treated as
// transient.
type TransientClassifier interface {
	IsTransientError(err error) bool
}

// Result is the envelope every tool returns.
type Result struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`

	// Empty marks a legitimate "no data" outcome. Consumers must treat
	// empty as a first-class case and never synthesize data.
	Empty bool `json:"empty_response,omitempty"`
}

// EmptyResult builds the structured empty envelope for a tool that found
// no usable data.
func EmptyResult(reason string) *Result {
	return &Result{
		Text:  fmt.Sprintf("No data available: %s", reason),
		Empty: true,
		Meta: map[string]any{
			"empty_response": true,
			"data_available": false,
			"reason":         reason,
		},
	}
}
