// Package state implements the typed session state record and the reducer
// gateway that merges concurrent partial updates from parallel graph nodes.
//
// Every mutation flows through Store.Commit, which applies one reducer per
// field. Reducers are deterministic and commutative over the concurrent
// writer patterns the graph actually produces, so the merged state is
// independent of arrival order.
package state

import (
	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// DebateState accumulates the investment (bull/bear) debate across rounds.
type DebateState struct {
	BullHistory      string `json:"bull_history"`
	BearHistory      string `json:"bear_history"`
	CombinedHistory  string `json:"combined_history"`
	CurrentResponse  string `json:"current_response"`
	JudgeDecision    string `json:"judge_decision"`
	RoundCount       int    `json:"round_count"`
	ConsensusReached bool   `json:"consensus_reached"`
	JudgeFeedback    string `json:"judge_feedback"`
	QualityScore     int    `json:"quality_score"`
}

// ResearchDebateState is the judge's round-control record. The conditional
// edge after each round reads it to decide between another round and the
// research manager.
type ResearchDebateState struct {
	RoundCount       int    `json:"round_count"`
	ConsensusReached bool   `json:"consensus_reached"`
	JudgeFeedback    string `json:"judge_feedback"`
	LastQualityScore int    `json:"last_quality_score"`
}

// RiskDebateState accumulates the three-perspective risk debate.
// The three Current* fields are each written by exactly one debator; the
// aggregator runs only once all three are non-empty.
type RiskDebateState struct {
	RiskyHistory   string `json:"risky_history"`
	SafeHistory    string `json:"safe_history"`
	NeutralHistory string `json:"neutral_history"`

	CurrentRiskyResponse   string `json:"current_risky_response"`
	CurrentSafeResponse    string `json:"current_safe_response"`
	CurrentNeutralResponse string `json:"current_neutral_response"`

	CombinedHistory string `json:"combined_history"`
	JudgeDecision   string `json:"judge_decision"`
	Count           int    `json:"count"`
}

// State is the full session record. It is owned by one Store; nodes receive
// deep-copied snapshots and never mutate shared memory.
type State struct {
	Ticker    string `json:"ticker"`
	TradeDate string `json:"trade_date"`

	// Per-analyst append-only message channels.
	Messages map[models.Analyst][]models.Message `json:"messages"`

	// The seven report fields, first-non-empty-wins.
	Reports map[models.ReportSection]string `json:"reports"`

	InvestmentDebate DebateState         `json:"investment_debate_state"`
	ResearchDebate   ResearchDebateState `json:"research_debate_state"`
	RiskDebate       RiskDebateState     `json:"risk_debate_state"`
}

// NewState returns an initialized state for the given session identity.
func NewState(ticker, tradeDate string) *State {
	return &State{
		Ticker:    ticker,
		TradeDate: tradeDate,
		Messages:  make(map[models.Analyst][]models.Message),
		Reports:   make(map[models.ReportSection]string),
	}
}

// Report returns the named report field ("" when unset).
func (s *State) Report(section models.ReportSection) string {
	return s.Reports[section]
}

// Channel returns the message channel for an analyst (nil when empty).
func (s *State) Channel(a models.Analyst) []models.Message {
	return s.Messages[a]
}

// clone produces a deep copy safe to hand to a concurrently running node.
func (s *State) clone() *State {
	cp := *s
	cp.Messages = make(map[models.Analyst][]models.Message, len(s.Messages))
	for k, v := range s.Messages {
		msgs := make([]models.Message, len(v))
		copy(msgs, v)
		cp.Messages[k] = msgs
	}
	cp.Reports = make(map[models.ReportSection]string, len(s.Reports))
	for k, v := range s.Reports {
		cp.Reports[k] = v
	}
	return &cp
}

// Update is a partial state produced by one node. Zero-valued fields are
// not applied. Updates never carry Ticker/TradeDate; those are immutable
// after session creation.
type Update struct {
	// Messages to append per channel, in order.
	Messages map[models.Analyst][]models.Message

	// Report assignments; ignored for fields already non-empty.
	Reports map[models.ReportSection]string

	InvestmentDebate *DebateState
	ResearchDebate   *ResearchDebateState
	RiskDebate       *RiskDebateState
}

// ReportUpdate is a convenience constructor for a single report write.
func ReportUpdate(section models.ReportSection, content string) *Update {
	return &Update{Reports: map[models.ReportSection]string{section: content}}
}

// MessagesUpdate is a convenience constructor for channel appends.
func MessagesUpdate(a models.Analyst, msgs ...models.Message) *Update {
	return &Update{Messages: map[models.Analyst][]models.Message{a: msgs}}
}
