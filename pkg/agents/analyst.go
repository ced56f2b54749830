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

// analystCharter is the role portion of each analyst's system prompt.
var analystCharter = map[models.Analyst]string{
	models.AnalystMarket: "You are a market analyst. Study price action, technical indicators, " +
		"insider activity, and the company profile, then write a market report covering trend, " +
		"momentum, support/resistance, and notable insider signals.",
	models.AnalystSocial: "You are a social sentiment analyst. Consolidate retail investor " +
		"sentiment from social platforms into a sentiment report covering mood, volume of " +
		"discussion, and notable shifts.",
	models.AnalystNews: "You are a news analyst. Search traditional news coverage and write a " +
		"news report covering material events, guidance changes, and macro context. Cite only " +
		"traditional news outlets.",
	models.AnalystFundamentals: "You are a fundamentals analyst. Study the financial statements, " +
		"insider data, and earnings coverage, then write a fundamentals report covering revenue, " +
		"margins, balance-sheet health, and earnings trajectory.",
}

// AgentName is the wire name for an analyst's agent_status and word-limit
// lookups.
func AgentName(a models.Analyst) string {
	return string(a) + "_analyst"
}

// failureReport is the sentinel assigned when an analyst could not retrieve
// any data.
func failureReport(ticker string) string {
	return fmt.Sprintf("WARNING: analysis failed for %s; no data retrieved", ticker)
}

// reportTokenCap is the upper safety bound on one analyst report. Reports
// over the cap are token-truncated with a visible marker.
const reportTokenCap = 8000

// AnalystNode drives one analyst from its initial prompt to a final report,
// interleaving LLM calls and parallel tool execution.
type AnalystNode struct {
	analyst  models.Analyst
	client   llm.Client
	invoker  *tools.Invoker
	registry *tools.Registry
	cfg      config.Config
	emitter  events.Emitter
}

// NewAnalystNode wires an analyst kernel.
func NewAnalystNode(a models.Analyst, client llm.Client, invoker *tools.Invoker,
	registry *tools.Registry, cfg config.Config, emitter events.Emitter) *AnalystNode {
	return &AnalystNode{
		analyst:  a,
		client:   client,
		invoker:  invoker,
		registry: registry,
		cfg:      cfg,
		emitter:  emitter,
	}
}

// Kernel adapts the analyst loop to the graph engine. A failed loop is not
// fatal to the session: the analyst falls back to the warning sentinel so
// downstream stages always have seven report fields to draw on.
func (n *AnalystNode) Kernel() graph.NodeFunc {
	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		agent := AgentName(n.analyst)
		n.emitter.Emit(events.AgentStatus(agent, events.StatusInProgress))

		report, appended, err := n.run(ctx, snap)
		if err != nil {
			slog.Error("Analyst loop failed", "analyst", n.analyst, "ticker", snap.Ticker, "error", err)
			n.emitter.Emit(events.AgentStatus(agent, events.StatusError))
			report = failureReport(snap.Ticker)
		} else {
			n.emitter.Emit(events.AgentStatus(agent, events.StatusCompleted))
		}

		if n.analyst == models.AnalystNews {
			report = ScrubSocialSources(report)
		}
		report = n.capReport(report)

		update := &state.Update{
			Reports: map[models.ReportSection]string{models.ReportSectionFor(n.analyst): report},
		}
		if len(appended) > 0 {
			update.Messages = map[models.Analyst][]models.Message{n.analyst: appended}
		}
		return &graph.NodeResult{Update: update}, nil
	}
}

// run executes the iteration loop and returns the final report plus the
// messages appended to the channel along the way.
func (n *AnalystNode) run(ctx context.Context, snap *state.State) (string, []models.Message, error) {
	agent := AgentName(n.analyst)
	system := n.systemPrompt(snap)
	defs := n.registry.Definitions(n.analyst)
	base := snap.Channel(n.analyst)

	var appended []models.Message
	for {
		view := CleanChannel(append(append([]models.Message{}, base...), appended...))

		resp, err := n.client.Generate(ctx, &llm.Request{
			Model:     n.cfg.DeepModel,
			System:    system,
			Messages:  view,
			Tools:     defs,
			MaxTokens: n.cfg.LLMMaxtokens,
		})
		if err != nil {
			return "", appended, err
		}
		if resp.Content != "" {
			n.emitter.Emit(events.Reasoning(agent, resp.Content))
		}

		if len(resp.ToolCalls) == 0 {
			if !hasToolResult(view) || resp.Content == "" {
				slog.Warn("Analyst finished without data", "analyst", n.analyst, "ticker", snap.Ticker)
				return failureReport(snap.Ticker), appended, nil
			}
			return resp.Content, appended, nil
		}

		kept, toolMsgs := n.executeCalls(ctx, resp.ToolCalls)
		appended = append(appended, models.NewAssistantMessage(resp.Content, kept...))
		appended = append(appended, toolMsgs...)

		if n.invoker.Total(n.analyst) >= n.cfg.MaxToolCallsPerAnalyst ||
			len(base)+len(appended) > n.cfg.MaxChannelMessages {
			report := lastAssistantContent(appended)
			if report == "" {
				report = failureReport(snap.Ticker)
			}
			slog.Info("Analyst force-completed",
				"analyst", n.analyst, "total_calls", n.invoker.Total(n.analyst),
				"channel_len", len(base)+len(appended))
			return report, appended, nil
		}
	}
}

// executeCalls filters the requested calls against the toolkit and the
// budget, runs the allowed ones in parallel, and returns the surviving calls
// (for the assistant message) plus one Tool message per surviving call.
//
// The ledger only learns about a call after it runs, so the budget and the
// dedup rule are also enforced across the batch itself: one response can
// carry more calls than the remaining allowance, or the same args twice.
func (n *AnalystNode) executeCalls(ctx context.Context, calls []models.ToolCall) ([]models.ToolCall, []models.Message) {
	var kept []models.ToolCall
	var denied []models.Message
	var runnable []models.ToolCall

	remaining := n.cfg.MaxToolCallsPerAnalyst - n.invoker.Total(n.analyst)
	batchHashes := make(map[string]bool, len(calls))

	for _, call := range calls {
		if !tools.Allowed(n.analyst, call.Name) {
			slog.Warn("Dropping out-of-toolkit tool call",
				"analyst", n.analyst, "tool", call.Name, "call_id", call.ID)
			continue
		}
		kept = append(kept, call)

		hash := call.Name + "\x00" + tools.HashArgs(call.Args)
		ok, reason := n.invoker.CanCall(n.analyst, call.Name, call.Args)
		switch {
		case !ok:
		case batchHashes[hash]:
			ok, reason = false, fmt.Sprintf("duplicate call: %s already requested with these args", call.Name)
		case remaining <= 0:
			ok, reason = false, fmt.Sprintf("tool-call budget exhausted (%d call limit)", n.cfg.MaxToolCallsPerAnalyst)
		}
		if !ok {
			slog.Info("Tool call denied", "analyst", n.analyst, "tool", call.Name, "reason", reason)
			denied = append(denied, models.NewToolMessage(call.ID, call.Name, "Tool call skipped: "+reason))
			continue
		}
		batchHashes[hash] = true
		remaining--
		runnable = append(runnable, call)
	}

	executed := n.invoker.ExecuteParallel(ctx, n.analyst, runnable)

	// Reassemble in the original call order so results pair with the
	// assistant message's call list.
	byID := make(map[string]models.Message, len(executed)+len(denied))
	for _, m := range executed {
		byID[m.ToolCallID] = m
	}
	for _, m := range denied {
		byID[m.ToolCallID] = m
	}
	msgs := make([]models.Message, 0, len(kept))
	for _, call := range kept {
		if m, ok := byID[call.ID]; ok {
			msgs = append(msgs, m)
		}
	}
	return kept, msgs
}

// capReport enforces the report token cap with the model's own encoder.
func (n *AnalystNode) capReport(report string) string {
	counter, err := tokens.NewCounter(n.cfg.DeepModel)
	if err != nil {
		slog.Warn("No encoder for model, skipping report cap",
			"model", n.cfg.DeepModel, "error", err)
		return report
	}
	count := counter.Count(report)
	if count <= reportTokenCap {
		return report
	}
	slog.Warn("Analyst report over token cap, truncating",
		"analyst", n.analyst, "tokens", count, "cap", reportTokenCap)
	return counter.Truncate(report, reportTokenCap) + tokens.TruncationMarker
}

func (n *AnalystNode) systemPrompt(snap *state.State) string {
	var b strings.Builder
	b.WriteString(analystCharter[n.analyst])
	fmt.Fprintf(&b, "\n\nTicker: %s\nTrade date: %s\n\n", snap.Ticker, snap.TradeDate)
	b.WriteString("Available tools: " + strings.Join(tools.Toolkit(n.analyst), ", ") + ". ")
	b.WriteString("Gather data with the tools before writing your report. ")
	b.WriteString("When you have enough data, respond with the final report and no tool calls.\n")
	b.WriteString(tokens.WordLimitClause(n.cfg.WordLimit(AgentName(n.analyst))))
	return b.String()
}

func lastAssistantContent(msgs []models.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
