// Package risk implements the parallel risk debate: three perspective
// debators fed by the context projector, the fan-in aggregator, and the
// risk judge that renders the final trade decision.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/contextproj"
	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/graph"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/state"
	"github.com/tradecouncil/tradecouncil/pkg/tokens"
)

// CancelledStub is committed by a debator whose LLM call did not finish
// before the session deadline, so the aggregator always sees three inputs.
const CancelledStub = "Analysis cancelled due to timeout — perspective unavailable"

// responseBudget caps each perspective response, in characters. Overflow is
// head-truncated: the argument front-loads its thesis.
const responseBudget = 2000

const agentJudge = "risk_judge"

// perspective binds one debator's identity together.
type perspective struct {
	agent      string
	projection contextproj.Perspective
	charter    string
	toUpdate   func(resp string) state.RiskDebateState
}

var perspectives = map[string]perspective{
	"risky": {
		agent:      "risky_debator",
		projection: contextproj.PerspectiveAggressive,
		charter: "You are the aggressive risk analyst. Argue for the upside: why the plan " +
			"should be pursued boldly, where the reward justifies the risk.",
		toUpdate: func(resp string) state.RiskDebateState {
			return state.RiskDebateState{CurrentRiskyResponse: resp, RiskyHistory: resp}
		},
	},
	"safe": {
		agent:      "safe_debator",
		projection: contextproj.PerspectiveConservative,
		charter: "You are the conservative risk analyst. Argue for caution: where the plan " +
			"can lose money, what should be hedged or scaled down.",
		toUpdate: func(resp string) state.RiskDebateState {
			return state.RiskDebateState{CurrentSafeResponse: resp, SafeHistory: resp}
		},
	},
	"neutral": {
		agent:      "neutral_debator",
		projection: contextproj.PerspectiveNeutral,
		charter: "You are the neutral risk analyst. Weigh both sides dispassionately and " +
			"state where the balance of evidence actually lies.",
		toUpdate: func(resp string) state.RiskDebateState {
			return state.RiskDebateState{CurrentNeutralResponse: resp, NeutralHistory: resp}
		},
	},
}

// Nodes bundles the risk-stage kernels.
type Nodes struct {
	client    llm.Client
	projector *contextproj.Projector
	cfg       config.Config
	emitter   events.Emitter
}

// New wires the risk kernels.
func New(client llm.Client, projector *contextproj.Projector, cfg config.Config, emitter events.Emitter) *Nodes {
	return &Nodes{client: client, projector: projector, cfg: cfg, emitter: emitter}
}

// Orchestrator opens the risk stage. The shared context the debators read is
// the consistent snapshot the scheduler hands each of them; the node itself
// only marks the stage transition.
func (n *Nodes) Orchestrator() graph.NodeFunc {
	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		n.emitter.Emit(events.Status("Risk debate started"))
		return &graph.NodeResult{}, nil
	}
}

// Debator returns the kernel for one of "risky", "safe", "neutral". The
// kernel never fails the session: any error, including the session deadline,
// degrades to the cancellation stub so the aggregator invariant holds.
func (n *Nodes) Debator(name string) graph.NodeFunc {
	p, ok := perspectives[name]
	if !ok {
		panic(fmt.Sprintf("risk: unknown perspective %q", name))
	}

	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		n.emitter.Emit(events.AgentStatus(p.agent, events.StatusInProgress))

		projected := n.projector.Project(snap, p.projection)
		prompt := projected +
			"\n## Trade proposal\n" + snap.Report(models.SectionTraderInvestmentPlan) +
			fmt.Sprintf("\n\nGive your focused %s assessment of this proposal for %s.",
				name, snap.Ticker)

		resp, err := n.client.Generate(ctx, &llm.Request{
			Model:     n.cfg.DeepModel,
			System:    p.charter + "\n" + tokens.WordLimitClause(n.cfg.WordLimit(p.agent)),
			Messages:  []models.Message{models.NewHumanMessage(prompt)},
			MaxTokens: n.cfg.LLMMaxtokens,
		})

		var text string
		switch {
		case err != nil:
			n.emitter.Emit(events.AgentStatus(p.agent, events.StatusError))
			text = CancelledStub
		case resp.Content == "":
			n.emitter.Emit(events.AgentStatus(p.agent, events.StatusError))
			text = CancelledStub
		default:
			text = tokens.TruncateHead(resp.Content, responseBudget)
			n.emitter.Emit(events.Reasoning(p.agent, text))
			n.emitter.Emit(events.AgentStatus(p.agent, events.StatusCompleted))
		}

		update := p.toUpdate(text)
		return &graph.NodeResult{Update: &state.Update{RiskDebate: &update}}, nil
	}
}

// Aggregator runs once all three debators committed (fan-in barrier) and
// folds their responses into the combined history in stable order.
func (n *Nodes) Aggregator() graph.NodeFunc {
	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		rd := snap.RiskDebate
		combined := strings.Join([]string{
			"Risky Analyst: " + rd.CurrentRiskyResponse,
			"Safe Analyst: " + rd.CurrentSafeResponse,
			"Neutral Analyst: " + rd.CurrentNeutralResponse,
		}, "\n\n")

		return &graph.NodeResult{Update: &state.Update{
			RiskDebate: &state.RiskDebateState{
				CombinedHistory: combined,
				Count:           rd.Count + 1,
			},
		}}, nil
	}
}

// Judge reads the aggregated debate and renders the final trade decision.
// No fallback: without a decision the session has no result.
func (n *Nodes) Judge() graph.NodeFunc {
	charter := "You are the risk judge. Weigh the three risk perspectives against the trade " +
		"proposal and render the final trade decision: the action to take, sized for the risk " +
		"actually present, with your reasoning."

	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		n.emitter.Emit(events.AgentStatus(agentJudge, events.StatusInProgress))

		prompt := "## Risk debate\n" + snap.RiskDebate.CombinedHistory +
			"\n## Trade proposal\n" + snap.Report(models.SectionTraderInvestmentPlan) +
			fmt.Sprintf("\n\nRender the final trade decision for %s.", snap.Ticker)

		resp, err := n.client.Generate(ctx, &llm.Request{
			Model:     n.cfg.DeepModel,
			System:    charter + "\n" + tokens.WordLimitClause(n.cfg.WordLimit(agentJudge)),
			Messages:  []models.Message{models.NewHumanMessage(prompt)},
			MaxTokens: n.cfg.LLMMaxtokens,
		})
		if err != nil {
			n.emitter.Emit(events.AgentStatus(agentJudge, events.StatusError))
			return nil, fmt.Errorf("%s: %w", agentJudge, err)
		}
		n.emitter.Emit(events.Reasoning(agentJudge, resp.Content))
		n.emitter.Emit(events.AgentStatus(agentJudge, events.StatusCompleted))

		return &graph.NodeResult{Update: &state.Update{
			RiskDebate: &state.RiskDebateState{JudgeDecision: resp.Content},
			Reports: map[models.ReportSection]string{
				models.SectionFinalTradeDecision: resp.Content,
			},
		}}, nil
	}
}
