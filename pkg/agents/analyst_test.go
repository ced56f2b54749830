package agents

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/metrics"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/state"
	"github.com/tradecouncil/tradecouncil/pkg/tokens"
	"github.com/tradecouncil/tradecouncil/pkg/tools"
)

type stubTool struct {
	name string
	text string
	err  error
}

func (t *stubTool) Name() string                { return t.name }
func (t *stubTool) Description() string         { return "stub" }
func (t *stubTool) ArgsSchema() map[string]any  { return map[string]any{"type": "object"} }
func (t *stubTool) Invoke(ctx context.Context, args map[string]any) (*tools.Result, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &tools.Result{Text: t.text}, nil
}

type recordEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordEmitter) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordEmitter) statuses(agent string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == events.TypeAgentStatus && e.Agent == agent {
			out = append(out, e.Status)
		}
	}
	return out
}

func newInvoker(reg *tools.Registry, maxCalls int) *tools.Invoker {
	return tools.NewInvoker(reg, tools.NewCache(time.Minute), tools.NewLedger(maxCalls),
		metrics.NewNop(), time.Second, 0)
}

func marketRegistry(text string) *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(&stubTool{name: tools.ToolPriceHistory, text: text})
	return reg
}

func TestAnalyst_ToolLoopProducesReport(t *testing.T) {
	reg := marketRegistry("AAPL closed up 2%")
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(req *llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "fetching prices", ToolCalls: []models.ToolCall{
				{ID: "c1", Name: tools.ToolPriceHistory, Args: map[string]any{"ticker": "AAPL"}},
			}}, nil
		},
		func(req *llm.Request) (*llm.Response, error) {
			// The tool result must be visible on the second call.
			last := req.Messages[len(req.Messages)-1]
			if last.Role != models.RoleTool || last.Content != "AAPL closed up 2%" {
				return nil, errors.New("tool result missing from channel")
			}
			return &llm.Response{Content: "Market report: uptrend intact."}, nil
		},
	}}
	em := &recordEmitter{}
	node := NewAnalystNode(models.AnalystMarket, fake, newInvoker(reg, 3), reg, config.Default(), em)

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, "Market report: uptrend intact.", res.Update.Reports[models.SectionMarketReport])
	require.Len(t, res.Update.Messages[models.AnalystMarket], 2)
	assert.Equal(t, []string{events.StatusInProgress, events.StatusCompleted},
		em.statuses("market_analyst"))
}

func TestAnalyst_OutOfToolkitCallDropped(t *testing.T) {
	reg := marketRegistry("prices")
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(req *llm.Request) (*llm.Response, error) {
			// The market analyst may not touch social tools.
			return &llm.Response{Content: "checking reddit", ToolCalls: []models.ToolCall{
				{ID: "c1", Name: tools.ToolRedditSentiment, Args: map[string]any{"ticker": "AAPL"}},
			}}, nil
		},
		llm.Respond("no tools needed after all"),
	}}
	node := NewAnalystNode(models.AnalystMarket, fake, newInvoker(reg, 3), reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	// No tool result ever landed, so the second response cannot be a report.
	assert.Contains(t, res.Update.Reports[models.SectionMarketReport], "WARNING: analysis failed for AAPL")
	for _, m := range res.Update.Messages[models.AnalystMarket] {
		assert.Empty(t, m.ToolCalls, "dropped call must not reach the channel")
	}
}

func TestAnalyst_BudgetForceCompletes(t *testing.T) {
	reg := marketRegistry("prices")
	call := func(id string, day string) func(*llm.Request) (*llm.Response, error) {
		return func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "partial thoughts " + id, ToolCalls: []models.ToolCall{
				{ID: id, Name: tools.ToolPriceHistory, Args: map[string]any{"date": day}},
			}}, nil
		}
	}
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		call("c1", "day1"),
		call("c2", "day2"), // never reached: budget of 1 is spent on c1
	}}
	node := NewAnalystNode(models.AnalystMarket, fake, newInvoker(reg, 1), reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, "partial thoughts c1", res.Update.Reports[models.SectionMarketReport])
	assert.Len(t, fake.Requests, 1)
}

func TestAnalyst_BatchOverBudgetCapped(t *testing.T) {
	reg := marketRegistry("prices")
	// One response asking for five distinct calls against a budget of three.
	var batch []models.ToolCall
	for i := 1; i <= 5; i++ {
		batch = append(batch, models.ToolCall{
			ID: "c" + strconv.Itoa(i), Name: tools.ToolPriceHistory,
			Args: map[string]any{"day": strconv.Itoa(i)},
		})
	}
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "gathering", ToolCalls: batch}, nil
		},
	}}
	inv := newInvoker(reg, 3)
	node := NewAnalystNode(models.AnalystMarket, fake, inv, reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, 3, inv.Total(models.AnalystMarket), "budget holds within one batch")

	executed, skipped := 0, 0
	for _, m := range res.Update.Messages[models.AnalystMarket] {
		if m.Role != models.RoleTool {
			continue
		}
		if strings.HasPrefix(m.Content, "Tool call skipped:") {
			skipped++
		} else {
			executed++
		}
	}
	assert.Equal(t, 3, executed)
	assert.Equal(t, 2, skipped)
}

func TestAnalyst_DuplicateArgsInBatchRunOnce(t *testing.T) {
	reg := marketRegistry("prices")
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: "gathering", ToolCalls: []models.ToolCall{
				{ID: "c1", Name: tools.ToolPriceHistory, Args: map[string]any{"ticker": "AAPL"}},
				{ID: "c2", Name: tools.ToolPriceHistory, Args: map[string]any{"ticker": "AAPL"}},
			}}, nil
		},
		llm.Respond("Market report: uptrend intact."),
	}}
	inv := newInvoker(reg, 3)
	node := NewAnalystNode(models.AnalystMarket, fake, inv, reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, 1, inv.Total(models.AnalystMarket), "identical args run once per batch")

	msgs := res.Update.Messages[models.AnalystMarket]
	require.Len(t, msgs, 3)
	assert.Equal(t, "prices", msgs[1].Content)
	assert.Contains(t, msgs[2].Content, "Tool call skipped: duplicate call")
}

func TestAnalyst_ReportTokenCapped(t *testing.T) {
	reg := marketRegistry("prices")
	oversized := strings.Repeat("momentum is strong and volume confirms it ", 2000)
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{ToolCalls: []models.ToolCall{
				{ID: "c1", Name: tools.ToolPriceHistory, Args: map[string]any{"ticker": "AAPL"}},
			}}, nil
		},
		llm.Respond(oversized),
	}}
	node := NewAnalystNode(models.AnalystMarket, fake, newInvoker(reg, 3), reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	report := res.Update.Reports[models.SectionMarketReport]
	assert.Less(t, len(report), len(oversized))
	assert.True(t, strings.HasSuffix(report, tokens.TruncationMarker))

	counter, err := tokens.NewCounter(config.Default().DeepModel)
	require.NoError(t, err)
	assert.LessOrEqual(t, counter.Count(report), reportTokenCap+counter.Count(tokens.TruncationMarker))
}

func TestAnalyst_NoToolsNoData_Sentinel(t *testing.T) {
	reg := marketRegistry("prices")
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		llm.Respond("I feel confident without data."),
	}}
	node := NewAnalystNode(models.AnalystMarket, fake, newInvoker(reg, 3), reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("TSLA", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "WARNING: analysis failed for TSLA; no data retrieved",
		res.Update.Reports[models.SectionMarketReport])
}

func TestAnalyst_LLMFailureFallsBack(t *testing.T) {
	reg := marketRegistry("prices")
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(*llm.Request) (*llm.Response, error) { return nil, errors.New("provider down") },
	}}
	em := &recordEmitter{}
	node := NewAnalystNode(models.AnalystMarket, fake, newInvoker(reg, 3), reg, config.Default(), em)

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err, "analyst failure is a fallback, not a fatal error")

	assert.Contains(t, res.Update.Reports[models.SectionMarketReport], "WARNING: analysis failed")
	assert.Equal(t, []string{events.StatusInProgress, events.StatusError},
		em.statuses("market_analyst"))
}

func TestAnalyst_NewsReportScrubbed(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(&stubTool{name: tools.ToolSearchNews, text: "headline feed"})
	fake := &llm.FakeClient{Script: []func(*llm.Request) (*llm.Response, error){
		func(*llm.Request) (*llm.Response, error) {
			return &llm.Response{ToolCalls: []models.ToolCall{
				{ID: "c1", Name: tools.ToolSearchNews, Args: map[string]any{"query": "AAPL"}},
			}}, nil
		},
		llm.Respond("Per Reuters the launch landed well; Reddit users disagreed."),
	}}
	node := NewAnalystNode(models.AnalystNews, fake, newInvoker(reg, 3), reg,
		config.Default(), events.NopEmitter{})

	snap := state.NewState("AAPL", "2025-01-02")
	res, err := node.Kernel()(context.Background(), snap)
	require.NoError(t, err)

	report := res.Update.Reports[models.SectionNewsReport]
	assert.NotContains(t, report, "Reddit")
	assert.Contains(t, report, "Reuters")
	assert.Contains(t, report, RedactionMarker)
}
