package state

import (
	"sync"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// Store is the reducer gateway. It owns the session State and serializes
// commits from concurrently running nodes. Reads hand out deep copies, so a
// node can never observe a half-applied update.
type Store struct {
	mu    sync.Mutex
	state *State
}

// NewStore creates a store owning a fresh state for the session.
func NewStore(ticker, tradeDate string) *Store {
	return &Store{state: NewState(ticker, tradeDate)}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Commit applies a partial update through the per-field reducers and returns
// the report sections that transitioned from empty to non-empty in this
// commit. Callers use the returned sections to emit each report event
// exactly once.
func (s *Store) Commit(u *Update) []models.ReportSection {
	if u == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for analyst, msgs := range u.Messages {
		s.state.Messages[analyst] = append(s.state.Messages[analyst], msgs...)
	}

	var assigned []models.ReportSection
	for section, content := range u.Reports {
		if content == "" || s.state.Reports[section] != "" {
			continue
		}
		s.state.Reports[section] = content
		assigned = append(assigned, section)
	}

	if u.InvestmentDebate != nil {
		s.state.InvestmentDebate = mergeDebate(s.state.InvestmentDebate, *u.InvestmentDebate)
	}
	if u.ResearchDebate != nil {
		s.state.ResearchDebate = mergeResearchDebate(s.state.ResearchDebate, *u.ResearchDebate)
	}
	if u.RiskDebate != nil {
		s.state.RiskDebate = mergeRiskDebate(s.state.RiskDebate, *u.RiskDebate)
	}
	return assigned
}

// Ticker returns the immutable session ticker.
func (s *Store) Ticker() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ticker
}

// TradeDate returns the immutable session trade date.
func (s *Store) TradeDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TradeDate
}
