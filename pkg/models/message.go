// Package models defines the shared data types exchanged between the engine,
// the agents, and the HTTP layer.
package models

// Role identifies the author of a conversation message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by an assistant message.
// The ID is unique within the message and links the eventual tool result
// back to this request.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one entry in a per-analyst conversation channel.
// Exactly one of the three variants applies:
//   - Human: Content only
//   - Assistant: Content plus zero or more ToolCalls
//   - Tool: Content plus the ToolCallID it resolves
//
// Channels are append-only; cleaning for tool soundness produces a new slice.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// NewHumanMessage returns a human message with the given content.
func NewHumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// NewAssistantMessage returns an assistant message with optional tool calls.
func NewAssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolMessage returns a tool result message resolving the given call ID.
func NewToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: name}
}
