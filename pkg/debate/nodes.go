package debate

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/graph"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/state"
	"github.com/tradecouncil/tradecouncil/pkg/tokens"
)

// Agent names on the event wire and in the word-limit table.
const (
	agentBull    = "bull_researcher"
	agentBear    = "bear_researcher"
	agentJudge   = "research_judge"
	agentManager = "research_manager"
	agentTrader  = "trader"
)

// Nodes bundles the debate-stage kernels. All of them are LLM-only; a
// failure here has no documented fallback and is fatal to the session.
type Nodes struct {
	client  llm.Client
	cfg     config.Config
	emitter events.Emitter
}

// New wires the debate kernels.
func New(client llm.Client, cfg config.Config, emitter events.Emitter) *Nodes {
	return &Nodes{client: client, cfg: cfg, emitter: emitter}
}

// Bull argues the long case for the current round.
func (d *Nodes) Bull() graph.NodeFunc {
	return d.researcher(agentBull, "bull",
		"You are the bull researcher. Argue the strongest possible case FOR investing, "+
			"grounded strictly in the analyst reports.",
		func(arg string) state.DebateState {
			return state.DebateState{
				BullHistory:     arg,
				CombinedHistory: "Bull: " + arg,
				CurrentResponse: arg,
			}
		})
}

// Bear argues the short case for the current round.
func (d *Nodes) Bear() graph.NodeFunc {
	return d.researcher(agentBear, "bear",
		"You are the bear researcher. Argue the strongest possible case AGAINST investing, "+
			"grounded strictly in the analyst reports.",
		func(arg string) state.DebateState {
			return state.DebateState{
				BearHistory:     arg,
				CombinedHistory: "Bear: " + arg,
				CurrentResponse: arg,
			}
		})
}

func (d *Nodes) researcher(agent, side, charter string, toUpdate func(string) state.DebateState) graph.NodeFunc {
	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		d.emitter.Emit(events.AgentStatus(agent, events.StatusInProgress))

		var b strings.Builder
		b.WriteString(reportsBlock(snap))
		debate := snap.InvestmentDebate
		if debate.CombinedHistory != "" {
			b.WriteString("\n## Debate so far\n" + debate.CombinedHistory + "\n")
		}
		if debate.RoundCount > 0 {
			fmt.Fprintf(&b, "\nThis is round %d. You must: "+
				"(1) rebut the opposing side's strongest prior point, "+
				"(2) incorporate the judge's feedback, "+
				"(3) advance your thesis with new evidence rather than repeating it.\n",
				debate.RoundCount+1)
			if debate.JudgeFeedback != "" {
				b.WriteString("Judge feedback: " + debate.JudgeFeedback + "\n")
			}
		}
		fmt.Fprintf(&b, "\nWrite your %s argument for %s.", side, snap.Ticker)

		resp, err := d.generate(ctx, agent, charter, b.String())
		if err != nil {
			d.emitter.Emit(events.AgentStatus(agent, events.StatusError))
			return nil, fmt.Errorf("%s: %w", agent, err)
		}
		d.emitter.Emit(events.Reasoning(agent, resp))
		d.emitter.Emit(events.AgentStatus(agent, events.StatusCompleted))

		update := toUpdate(resp)
		return &graph.NodeResult{Update: &state.Update{InvestmentDebate: &update}}, nil
	}
}

// Judge evaluates the round and decides whether the debate continues.
func (d *Nodes) Judge() graph.NodeFunc {
	charter := "You are the research judge. Evaluate the bull and bear arguments and answer in " +
		"exactly four lines:\n" +
		"CONSENSUS REACHED: yes|no\n" +
		"UNRESOLVED: <the unresolved points, comma separated>\n" +
		"NEXT FOCUS: <what the next round must settle>\n" +
		"QUALITY SCORE: <1-10>"

	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		d.emitter.Emit(events.AgentStatus(agentJudge, events.StatusInProgress))

		prompt := "## Debate\n" + snap.InvestmentDebate.CombinedHistory +
			fmt.Sprintf("\n\nEvaluate round %d of the debate on %s.",
				snap.InvestmentDebate.RoundCount+1, snap.Ticker)

		resp, err := d.generate(ctx, agentJudge, charter, prompt)
		if err != nil {
			d.emitter.Emit(events.AgentStatus(agentJudge, events.StatusError))
			return nil, fmt.Errorf("%s: %w", agentJudge, err)
		}
		d.emitter.Emit(events.Reasoning(agentJudge, resp))
		d.emitter.Emit(events.AgentStatus(agentJudge, events.StatusCompleted))

		verdict := ParseVerdict(resp)
		consensus := verdict.ConsensusReached
		if t := d.cfg.ForceConsensusThreshold; t > 0 && verdict.QualityScore >= t {
			consensus = true
		}

		feedback := verdict.NextFocus
		if verdict.Unresolved != "" {
			feedback = "Unresolved: " + verdict.Unresolved + ". Focus: " + verdict.NextFocus
		}
		round := snap.InvestmentDebate.RoundCount + 1

		return &graph.NodeResult{Update: &state.Update{
			InvestmentDebate: &state.DebateState{
				RoundCount:       round,
				ConsensusReached: consensus,
				JudgeFeedback:    feedback,
				QualityScore:     verdict.QualityScore,
			},
			ResearchDebate: &state.ResearchDebateState{
				RoundCount:       round,
				ConsensusReached: consensus,
				JudgeFeedback:    feedback,
				LastQualityScore: verdict.QualityScore,
			},
		}}, nil
	}
}

// Router decides after each judged round: another round, or on to the
// research manager.
func (d *Nodes) Router(nextRound, done graph.NodeName) graph.Predicate {
	return func(snap *state.State) graph.NodeName {
		rd := snap.ResearchDebate
		if rd.ConsensusReached || rd.RoundCount >= d.cfg.MaxDebateRounds {
			return done
		}
		return nextRound
	}
}

// Manager synthesizes the debate into the investment plan.
func (d *Nodes) Manager() graph.NodeFunc {
	charter := "You are the research manager. Synthesize the analyst reports and the concluded " +
		"bull/bear debate into a single actionable investment plan: thesis, key risks, and a " +
		"recommended stance."

	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		d.emitter.Emit(events.AgentStatus(agentManager, events.StatusInProgress))

		prompt := reportsBlock(snap) +
			"\n## Concluded debate\n" + snap.InvestmentDebate.CombinedHistory +
			fmt.Sprintf("\n\nWrite the investment plan for %s.", snap.Ticker)

		resp, err := d.generate(ctx, agentManager, charter, prompt)
		if err != nil {
			d.emitter.Emit(events.AgentStatus(agentManager, events.StatusError))
			return nil, fmt.Errorf("%s: %w", agentManager, err)
		}
		d.emitter.Emit(events.Reasoning(agentManager, resp))
		d.emitter.Emit(events.AgentStatus(agentManager, events.StatusCompleted))

		return &graph.NodeResult{Update: &state.Update{
			InvestmentDebate: &state.DebateState{JudgeDecision: resp},
			Reports:          map[models.ReportSection]string{models.SectionInvestmentPlan: resp},
		}}, nil
	}
}

// Trader turns the investment plan into a concrete trade proposal.
func (d *Nodes) Trader() graph.NodeFunc {
	charter := "You are the trader. Turn the investment plan into a concrete trade proposal " +
		"stating: action (buy/sell/hold), entry price, stop loss, take profit, position size, " +
		"and your confidence."

	return func(ctx context.Context, snap *state.State) (*graph.NodeResult, error) {
		d.emitter.Emit(events.AgentStatus(agentTrader, events.StatusInProgress))

		prompt := reportsBlock(snap) +
			"\n## Investment plan\n" + snap.Report(models.SectionInvestmentPlan) +
			fmt.Sprintf("\n\nWrite the trade proposal for %s.", snap.Ticker)

		resp, err := d.generate(ctx, agentTrader, charter, prompt)
		if err != nil {
			d.emitter.Emit(events.AgentStatus(agentTrader, events.StatusError))
			return nil, fmt.Errorf("%s: %w", agentTrader, err)
		}
		d.emitter.Emit(events.Reasoning(agentTrader, resp))
		d.emitter.Emit(events.AgentStatus(agentTrader, events.StatusCompleted))

		return &graph.NodeResult{Update: &state.Update{
			Reports: map[models.ReportSection]string{models.SectionTraderInvestmentPlan: resp},
		}}, nil
	}
}

func (d *Nodes) generate(ctx context.Context, agent, charter, prompt string) (string, error) {
	resp, err := d.client.Generate(ctx, &llm.Request{
		Model:     d.cfg.DeepModel,
		System:    charter + "\n" + tokens.WordLimitClause(d.cfg.WordLimit(agent)),
		Messages:  []models.Message{models.NewHumanMessage(prompt)},
		MaxTokens: d.cfg.LLMMaxtokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// reportsBlock renders the four analyst reports as labeled sections,
// skipping empty ones.
func reportsBlock(snap *state.State) string {
	var b strings.Builder
	b.WriteString("# Analyst reports\n")
	for _, a := range models.Analysts {
		section := models.ReportSectionFor(a)
		content := snap.Report(section)
		if content == "" {
			continue
		}
		b.WriteString("\n## " + strings.ToUpper(strings.ReplaceAll(string(section), "_", " ")) +
			"\n" + content + "\n")
	}
	return b.String()
}
