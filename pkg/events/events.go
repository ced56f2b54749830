// Package events defines the progress events a session emits and the
// per-session stream that delivers them to SSE subscribers.
package events

import (
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/tokens"
)

// Type discriminates event payloads on the wire.
type Type string

const (
	TypeStatus      Type = "status"
	TypeAgentStatus Type = "agent_status"
	TypeReasoning   Type = "reasoning"
	TypeReport      Type = "report"
	TypeProgress    Type = "progress"
	TypeComplete    Type = "complete"
	TypeError       Type = "error"
)

// Agent status values. Transitions are monotone:
// in_progress → completed, or in_progress → error.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// reasoningFragmentLimit caps reasoning event content.
const reasoningFragmentLimit = 500

// Event is one progress event. Exactly the fields relevant to its Type are
// set; the rest marshal away via omitempty.
type Event struct {
	Type    Type   `json:"type"`
	Message string `json:"message,omitempty"`
	Agent   string `json:"agent,omitempty"`
	Status  string `json:"status,omitempty"`
	Content string `json:"content,omitempty"`
	Section string `json:"section,omitempty"`
	Signal  string `json:"signal,omitempty"`
}

// Status builds a free-form status event.
func Status(message string) Event {
	return Event{Type: TypeStatus, Message: message}
}

// AgentStatus builds an agent lifecycle event.
func AgentStatus(agent, status string) Event {
	return Event{Type: TypeAgentStatus, Agent: agent, Status: status}
}

// Reasoning builds a reasoning fragment event, truncated to the fragment
// limit on a rune boundary.
func Reasoning(agent, content string) Event {
	return Event{Type: TypeReasoning, Agent: agent, Content: tokens.Clip(content, reasoningFragmentLimit)}
}

// Report builds a report section event.
func Report(section models.ReportSection, content string) Event {
	return Event{Type: TypeReport, Section: string(section), Content: content}
}

// Progress builds a progress percentage event ("0".."100").
func Progress(percent string) Event {
	return Event{Type: TypeProgress, Content: percent}
}

// Complete builds the terminal success event.
func Complete(message, signal string) Event {
	return Event{Type: TypeComplete, Message: message, Signal: signal}
}

// Error builds the terminal error event.
func Error(message string) Event {
	return Event{Type: TypeError, Message: message}
}
