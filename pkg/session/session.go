// Package session owns the lifecycle of one analysis: graph assembly,
// execution under the session deadline, progress emission, cancellation,
// and reduction of the terminal state into the response.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradecouncil/tradecouncil/pkg/agents"
	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/contextproj"
	"github.com/tradecouncil/tradecouncil/pkg/debate"
	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/graph"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/metrics"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/risk"
	"github.com/tradecouncil/tradecouncil/pkg/state"
	"github.com/tradecouncil/tradecouncil/pkg/tools"
)

// Request describes one analysis to run. ID is assigned when empty; Emitter
// may be nil for the synchronous path.
type Request struct {
	ID        string
	Ticker    string
	TradeDate string
	Emitter   events.Emitter
}

// Manager runs analysis sessions and tracks the in-flight set for
// cancellation and health reporting.
type Manager struct {
	cfg      config.Config
	client   llm.Client
	registry *tools.Registry
	cache    *tools.Cache
	metrics  *metrics.Metrics
	signal   *SignalProcessor

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewManager wires a session manager. The tool cache is shared across
// sessions; ledgers are per-session.
func NewManager(cfg config.Config, client llm.Client, registry *tools.Registry, m *metrics.Metrics) *Manager {
	return &Manager{
		cfg:      cfg,
		client:   client,
		registry: registry,
		cache:    tools.NewCache(cfg.ToolCacheTTL),
		metrics:  m,
		signal:   NewSignalProcessor(client, cfg.FastModel),
		active:   make(map[string]context.CancelFunc),
	}
}

// Cancel cancels the named in-flight session. Returns false when no such
// session is running.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		slog.Info("Cancelling session", "session_id", id)
		cancel()
	}
	return ok
}

// InFlight returns the number of running sessions.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) register(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.active[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

// Analyze runs one full analysis to completion.
//
// Degraded completions (deadline, explicit cancel, recursion limit) return a
// response carrying whatever sections were committed plus an Error string;
// only infrastructure failures return a non-nil error.
func (m *Manager) Analyze(ctx context.Context, req Request) (*models.AnalysisResponse, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	emitter := req.Emitter
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	tradeDate := req.TradeDate
	if tradeDate == "" {
		tradeDate = time.Now().Format("2006-01-02")
	}

	runCtx, cancel := context.WithTimeout(ctx, m.cfg.ExecutionTimeout)
	defer cancel()
	m.register(id, cancel)
	defer m.unregister(id)

	m.metrics.SessionsInFlight.Inc()
	defer m.metrics.SessionsInFlight.Dec()
	start := time.Now()
	defer func() { m.metrics.SessionDuration.Observe(time.Since(start).Seconds()) }()

	slog.Info("Session started", "session_id", id, "ticker", req.Ticker, "trade_date", tradeDate)
	emitter.Emit(events.Status(fmt.Sprintf("Analysis started for %s (session %s)", req.Ticker, id)))

	tracker := newProgressTracker(emitter)
	tracker.set(pctValidated)

	store := state.NewStore(req.Ticker, tradeDate)
	ledger := tools.NewLedger(m.cfg.MaxToolCallsPerAnalyst)
	invoker := tools.NewInvoker(m.registry, m.cache, ledger, m.metrics,
		m.cfg.ToolTimeout, m.cfg.ToolRetryAttempts)
	projector := contextproj.New(m.cfg.EnableSmartContext)
	riskNodes := risk.New(m.client, projector, m.cfg, emitter)

	g, err := m.buildGraph(invoker, riskNodes, emitter, tracker)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	commit := func(update *state.Update) {
		assigned := store.Commit(update)
		snap := store.Snapshot()
		for _, section := range assigned {
			emitter.Emit(events.Report(section, snap.Report(section)))
			tracker.sectionCommitted(section)
		}
	}

	runErr := g.Run(runCtx, store, graph.RunOptions{
		RecursionLimit: m.cfg.RecursionLimit,
		OnCommit: func(assigned []models.ReportSection) {
			snap := store.Snapshot()
			for _, section := range assigned {
				emitter.Emit(events.Report(section, snap.Report(section)))
				tracker.sectionCommitted(section)
			}
		},
	})

	if errors.Is(runErr, context.DeadlineExceeded) {
		m.finishRiskDegraded(store, riskNodes, commit)
	}

	snap := store.Snapshot()
	resp := buildResponse(snap)

	switch {
	case runErr == nil:
	case errors.Is(runErr, context.DeadlineExceeded):
		resp.Error = fmt.Sprintf("analysis timed out after %s", m.cfg.ExecutionTimeout)
	case errors.Is(runErr, context.Canceled):
		resp.Error = "analysis cancelled"
	case errors.Is(runErr, graph.ErrRecursionLimit):
		resp.Error = runErr.Error()
	default:
		slog.Error("Session failed", "session_id", id, "ticker", req.Ticker, "error", runErr)
		emitter.Emit(events.Error(runErr.Error()))
		return nil, fmt.Errorf("session %s: %w", id, runErr)
	}

	resp.ProcessedSignal = m.signal.Process(ctx, resp.FinalTradeDecision)

	if resp.Error != "" {
		slog.Warn("Session degraded", "session_id", id, "ticker", req.Ticker, "error", resp.Error)
		emitter.Emit(events.Error(resp.Error))
	} else {
		tracker.set(pctComplete)
		emitter.Emit(events.Complete("Analysis complete", resp.ProcessedSignal))
		slog.Info("Session complete", "session_id", id, "ticker", req.Ticker,
			"signal", resp.ProcessedSignal, "duration", time.Since(start))
	}
	return resp, nil
}

// Node names in the session graph.
const (
	nodeDispatcher  = "dispatcher"
	nodeAnalystJoin = "analyst_join"
	nodeBull        = "bull_researcher"
	nodeBear        = "bear_researcher"
	nodeJudge       = "research_judge"
	nodeManager     = "research_manager"
	nodeTrader      = "trader"
	nodeRiskStart   = "risk_orchestrator"
	nodeRiskAgg     = "risk_aggregator"
	nodeRiskJudge   = "risk_judge"
)

func analystNode(a models.Analyst) graph.NodeName {
	return graph.NodeName(agents.AgentName(a))
}

// buildGraph assembles the per-session execution plan:
//
//	dispatcher ─Send→ 4 analysts → join → bull → bear → judge ─┐
//	     ┌──────────────────────────────────────────────────────┘
//	     └→ (loop to bull | manager) → trader → orchestrator
//	         → {risky, safe, neutral} → aggregator → risk judge → end
func (m *Manager) buildGraph(invoker *tools.Invoker, riskNodes *risk.Nodes,
	emitter events.Emitter, tracker *progressTracker) (*graph.Graph, error) {

	b := graph.NewBuilder()

	b.AddNode(nodeDispatcher, func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		emitter.Emit(events.Status("Analysts dispatched"))
		tracker.set(pctDispatched)
		seed := fmt.Sprintf("Analyze %s as of %s.", snap.Ticker, snap.TradeDate)
		sends := make([]graph.Send, 0, len(models.Analysts))
		for _, a := range models.Analysts {
			sends = append(sends, graph.Send{
				Target: analystNode(a),
				Update: state.MessagesUpdate(a, models.NewHumanMessage(seed)),
			})
		}
		return &graph.NodeResult{Sends: sends}, nil
	})

	for _, a := range models.Analysts {
		var kernel graph.NodeFunc
		if a == models.AnalystSocial {
			kernel = agents.NewSocialNode(m.client, invoker, m.cfg, emitter).Kernel()
		} else {
			kernel = agents.NewAnalystNode(a, m.client, invoker, m.registry, m.cfg, emitter).Kernel()
		}
		b.AddNode(analystNode(a), kernel)
		b.AddEdge(analystNode(a), nodeAnalystJoin)
	}

	b.AddNode(nodeAnalystJoin, func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		tracker.set(pctAnalysts)
		emitter.Emit(events.Status("Analyst reports complete, debate starting"))
		return &graph.NodeResult{}, nil
	})
	b.AddEdge(nodeAnalystJoin, nodeBull)

	d := debate.New(m.client, m.cfg, emitter)
	b.AddNode(nodeBull, d.Bull())
	b.AddNode(nodeBear, d.Bear())
	b.AddNode(nodeJudge, d.Judge())
	b.AddNode(nodeManager, withProgress(tracker, pctDebateDone, d.Manager()))
	b.AddNode(nodeTrader, d.Trader())
	b.AddEdge(nodeBull, nodeBear)
	b.AddEdge(nodeBear, nodeJudge)
	b.AddConditionalEdge(nodeJudge, d.Router(nodeBull, nodeManager))
	b.AddEdge(nodeManager, nodeTrader)
	b.AddEdge(nodeTrader, nodeRiskStart)

	b.AddNode(nodeRiskStart, riskNodes.Orchestrator())
	for _, p := range []string{"risky", "safe", "neutral"} {
		name := graph.NodeName(p + "_debator")
		b.AddNode(name, riskNodes.Debator(p))
		b.AddEdge(nodeRiskStart, name)
		b.AddEdge(name, nodeRiskAgg)
	}
	b.AddNode(nodeRiskAgg, withProgress(tracker, pctRiskDone, riskNodes.Aggregator()))
	b.AddNode(nodeRiskJudge, riskNodes.Judge())
	b.AddEdge(nodeRiskAgg, nodeRiskJudge)
	b.AddEdge(nodeRiskJudge, graph.End)

	b.SetStart(nodeDispatcher)
	return b.Compile()
}

// riskGraceTimeout bounds the degraded completion that runs after the
// session deadline: stubbing missing risk perspectives, folding the
// aggregate, and giving the risk judge one short window to decide.
const riskGraceTimeout = 15 * time.Second

// finishRiskDegraded completes the risk stage after the session deadline.
// The deadline drain already let interrupted debators commit their
// cancellation stubs; this fills in any perspective that never started,
// folds the aggregate, and runs the risk judge on a fresh grace context so
// a timed-out session still ends with a decision. Sessions that never
// reached the risk stage are left as they are.
func (m *Manager) finishRiskDegraded(store *state.Store, r *risk.Nodes, commit func(*state.Update)) {
	snap := store.Snapshot()
	if snap.Report(models.SectionTraderInvestmentPlan) == "" ||
		snap.Report(models.SectionFinalTradeDecision) != "" {
		return
	}

	stubs := &state.RiskDebateState{}
	if snap.RiskDebate.CurrentRiskyResponse == "" {
		stubs.CurrentRiskyResponse = risk.CancelledStub
		stubs.RiskyHistory = risk.CancelledStub
	}
	if snap.RiskDebate.CurrentSafeResponse == "" {
		stubs.CurrentSafeResponse = risk.CancelledStub
		stubs.SafeHistory = risk.CancelledStub
	}
	if snap.RiskDebate.CurrentNeutralResponse == "" {
		stubs.CurrentNeutralResponse = risk.CancelledStub
		stubs.NeutralHistory = risk.CancelledStub
	}
	commit(&state.Update{RiskDebate: stubs})

	ctx, cancel := context.WithTimeout(context.Background(), riskGraceTimeout)
	defer cancel()

	res, err := r.Aggregator()(ctx, store.Snapshot())
	if err != nil || res == nil || res.Update == nil {
		return
	}
	commit(res.Update)

	res, err = r.Judge()(ctx, store.Snapshot())
	if err != nil || res == nil || res.Update == nil {
		slog.Warn("Degraded risk judgment failed", "ticker", snap.Ticker, "error", err)
		return
	}
	commit(res.Update)
}

// withProgress bumps the progress bar before running the wrapped kernel.
func withProgress(tracker *progressTracker, pct int, fn graph.NodeFunc) graph.NodeFunc {
	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		tracker.set(pct)
		return fn(ctx, snap)
	}
}

func buildResponse(snap *state.State) *models.AnalysisResponse {
	return &models.AnalysisResponse{
		Ticker:               snap.Ticker,
		AnalysisDate:         snap.TradeDate,
		MarketReport:         snap.Report(models.SectionMarketReport),
		SentimentReport:      snap.Report(models.SectionSentimentReport),
		NewsReport:           snap.Report(models.SectionNewsReport),
		FundamentalsReport:   snap.Report(models.SectionFundamentalsReport),
		InvestmentPlan:       snap.Report(models.SectionInvestmentPlan),
		TraderInvestmentPlan: snap.Report(models.SectionTraderInvestmentPlan),
		FinalTradeDecision:   snap.Report(models.SectionFinalTradeDecision),
	}
}
