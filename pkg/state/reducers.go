package state

import "strings"

// historySeparator joins appended debate history segments.
const historySeparator = "\n\n"

// mergeHistory appends an incoming segment to an accumulated history unless
// the segment is already contained in it. Substring containment (not
// equality) makes the merge idempotent when a node re-commits the combined
// history it previously read.
func mergeHistory(acc, segment string) string {
	if segment == "" {
		return acc
	}
	if acc == "" {
		return segment
	}
	if strings.Contains(acc, segment) {
		return acc
	}
	return acc + historySeparator + segment
}

// lastNonEmpty implements last-non-empty-wins for current_* response fields.
func lastNonEmpty(acc, incoming string) string {
	if incoming != "" {
		return incoming
	}
	return acc
}

// firstNonEmpty implements first-non-empty-wins (sticky) semantics.
func firstNonEmpty(acc, incoming string) string {
	if acc != "" {
		return acc
	}
	return incoming
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// mergeDebate structurally merges an incoming investment debate segment.
func mergeDebate(acc DebateState, in DebateState) DebateState {
	out := acc
	out.BullHistory = mergeHistory(acc.BullHistory, in.BullHistory)
	out.BearHistory = mergeHistory(acc.BearHistory, in.BearHistory)
	out.CombinedHistory = mergeHistory(acc.CombinedHistory, in.CombinedHistory)
	out.CurrentResponse = lastNonEmpty(acc.CurrentResponse, in.CurrentResponse)
	out.JudgeDecision = firstNonEmpty(acc.JudgeDecision, in.JudgeDecision)
	out.RoundCount = maxInt(acc.RoundCount, in.RoundCount)
	out.ConsensusReached = acc.ConsensusReached || in.ConsensusReached
	out.JudgeFeedback = lastNonEmpty(acc.JudgeFeedback, in.JudgeFeedback)
	if in.QualityScore > 0 {
		out.QualityScore = in.QualityScore
	}
	return out
}

// mergeResearchDebate merges the judge's round-control record.
func mergeResearchDebate(acc ResearchDebateState, in ResearchDebateState) ResearchDebateState {
	out := acc
	out.RoundCount = maxInt(acc.RoundCount, in.RoundCount)
	out.ConsensusReached = acc.ConsensusReached || in.ConsensusReached
	out.JudgeFeedback = lastNonEmpty(acc.JudgeFeedback, in.JudgeFeedback)
	if in.LastQualityScore > 0 {
		out.LastQualityScore = in.LastQualityScore
	}
	return out
}

// mergeRiskDebate merges a risk-debate segment. Each perspective writes a
// disjoint Current* field, so concurrent commits from the three debators
// compose without loss regardless of order.
func mergeRiskDebate(acc RiskDebateState, in RiskDebateState) RiskDebateState {
	out := acc
	out.RiskyHistory = mergeHistory(acc.RiskyHistory, in.RiskyHistory)
	out.SafeHistory = mergeHistory(acc.SafeHistory, in.SafeHistory)
	out.NeutralHistory = mergeHistory(acc.NeutralHistory, in.NeutralHistory)
	out.CurrentRiskyResponse = lastNonEmpty(acc.CurrentRiskyResponse, in.CurrentRiskyResponse)
	out.CurrentSafeResponse = lastNonEmpty(acc.CurrentSafeResponse, in.CurrentSafeResponse)
	out.CurrentNeutralResponse = lastNonEmpty(acc.CurrentNeutralResponse, in.CurrentNeutralResponse)
	out.CombinedHistory = mergeHistory(acc.CombinedHistory, in.CombinedHistory)
	out.JudgeDecision = firstNonEmpty(acc.JudgeDecision, in.JudgeDecision)
	out.Count = maxInt(acc.Count, in.Count)
	return out
}
