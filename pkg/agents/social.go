package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/graph"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/state"
	"github.com/tradecouncil/tradecouncil/pkg/tokens"
	"github.com/tradecouncil/tradecouncil/pkg/tools"
)

// socialResponseBudget caps the social report, in characters. Overflow is
// middle-truncated so both the opening summary and the closing verdict
// survive.
const socialResponseBudget = 4000

// socialSources are the three platforms the social analyst always queries,
// in fixed order.
var socialSources = []string{
	tools.ToolRedditSentiment,
	tools.ToolTwitterSentiment,
	tools.ToolStockTwitsSentiment,
}

// SocialNode is the social analyst. Unlike the other analysts it never lets
// the LLM choose tools: it always fans out to the three platforms in
// parallel, then spends exactly one LLM call consolidating whatever came
// back. This guarantees the fan-out and bounds token use regardless of
// model behavior.
type SocialNode struct {
	client  llm.Client
	invoker *tools.Invoker
	cfg     config.Config
	emitter events.Emitter
}

// NewSocialNode wires the social analyst kernel.
func NewSocialNode(client llm.Client, invoker *tools.Invoker, cfg config.Config, emitter events.Emitter) *SocialNode {
	return &SocialNode{client: client, invoker: invoker, cfg: cfg, emitter: emitter}
}

// Kernel adapts the social path to the graph engine. Failure falls back to
// the warning sentinel, never a fatal error.
func (n *SocialNode) Kernel() graph.NodeFunc {
	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		agent := AgentName(models.AnalystSocial)
		n.emitter.Emit(events.AgentStatus(agent, events.StatusInProgress))

		calls := make([]models.ToolCall, len(socialSources))
		for i, name := range socialSources {
			calls[i] = models.ToolCall{
				ID:   fmt.Sprintf("social-%d", i+1),
				Name: name,
				Args: map[string]any{"ticker": snap.Ticker, "date": snap.TradeDate},
			}
		}
		toolMsgs := n.invoker.ExecuteParallel(ctx, models.AnalystSocial, calls)

		available := 0
		for _, m := range toolMsgs {
			if sourceUsable(m.Content) {
				available++
			}
		}
		slog.Info("Social sources fetched", "ticker", snap.Ticker,
			"available", available, "total", len(socialSources))

		report, err := n.consolidate(ctx, snap, toolMsgs, available)
		if err != nil {
			slog.Error("Social consolidation failed", "ticker", snap.Ticker, "error", err)
			n.emitter.Emit(events.AgentStatus(agent, events.StatusError))
			report = failureReport(snap.Ticker)
		} else {
			n.emitter.Emit(events.Reasoning(agent, report))
			n.emitter.Emit(events.AgentStatus(agent, events.StatusCompleted))
		}

		appended := make([]models.Message, 0, len(toolMsgs)+2)
		appended = append(appended, models.NewAssistantMessage("", calls...))
		appended = append(appended, toolMsgs...)
		appended = append(appended, models.NewAssistantMessage(report))

		return &graph.NodeResult{Update: &state.Update{
			Reports:  map[models.ReportSection]string{models.SectionSentimentReport: report},
			Messages: map[models.Analyst][]models.Message{models.AnalystSocial: appended},
		}}, nil
	}
}

func (n *SocialNode) consolidate(ctx context.Context, snap *state.State,
	toolMsgs []models.Message, available int) (string, error) {

	var b strings.Builder
	fmt.Fprintf(&b, "Social sentiment data for %s (%d/%d data sources available):\n",
		snap.Ticker, available, len(socialSources))
	for _, m := range toolMsgs {
		fmt.Fprintf(&b, "\n### %s\n%s\n", m.ToolName, m.Content)
	}

	system := analystCharter[models.AnalystSocial] + "\n" +
		tokens.WordLimitClause(n.cfg.WordLimit(AgentName(models.AnalystSocial)))

	resp, err := n.client.Generate(ctx, &llm.Request{
		Model:     n.cfg.DeepModel,
		System:    system,
		Messages:  []models.Message{models.NewHumanMessage(b.String())},
		MaxTokens: n.cfg.LLMMaxtokens,
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return failureReport(snap.Ticker), nil
	}

	report := tokens.TruncateMiddle(resp.Content, socialResponseBudget)
	if available < len(socialSources) {
		report += fmt.Sprintf("\n\n[low confidence: %d/%d data sources available]",
			available, len(socialSources))
	}
	return report, nil
}

// sourceUsable reports whether a tool message carries real data rather than
// a failure or an empty envelope.
func sourceUsable(content string) bool {
	return content != "" &&
		!strings.HasPrefix(content, "Error:") &&
		!strings.HasPrefix(content, "No data available:")
}
