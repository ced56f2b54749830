// Package agents implements the node kernels that drive the four analysts:
// prompt composition, the LLM/tool iteration loop, channel soundness
// cleaning, and the analyst-specific output rules.
package agents

import (
	"log/slog"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// toolStubContent resolves a tool call the channel never answered.
const toolStubContent = "Tool execution completed"

// CleanChannel rewrites a message channel into a tool-sound sequence:
//
//   - a Tool message with no preceding Assistant message carrying its
//     tool_call_id becomes a Human message ("Tool result: ..."),
//   - an Assistant message whose tool calls were never answered gets
//     synthesized stub Tool messages before the next Assistant message
//     (or at the end of the channel).
//
// The input slice is never mutated; channels are append-only.
func CleanChannel(msgs []models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))

	// Unresolved calls from the most recent assistant message, in call order
	// so synthesized stubs are deterministic.
	var pending []models.ToolCall
	resolve := func(id string) bool {
		for i, call := range pending {
			if call.ID == id {
				pending = append(pending[:i], pending[i+1:]...)
				return true
			}
		}
		return false
	}
	flush := func() {
		for _, call := range pending {
			out = append(out, models.NewToolMessage(call.ID, call.Name, toolStubContent))
		}
		pending = pending[:0]
	}

	for _, m := range msgs {
		switch m.Role {
		case models.RoleAssistant:
			flush()
			out = append(out, m)
			pending = append(pending, m.ToolCalls...)

		case models.RoleTool:
			if resolve(m.ToolCallID) {
				out = append(out, m)
				continue
			}
			slog.Debug("Rewriting orphan tool message", "call_id", m.ToolCallID, "tool", m.ToolName)
			out = append(out, models.NewHumanMessage("Tool result: "+m.Content))

		default:
			out = append(out, m)
		}
	}
	flush()
	return out
}

// hasToolResult reports whether the channel contains at least one resolved
// tool result, i.e. the analyst actually fetched data.
func hasToolResult(msgs []models.Message) bool {
	for _, m := range msgs {
		if m.Role == models.RoleTool {
			return true
		}
	}
	return false
}
