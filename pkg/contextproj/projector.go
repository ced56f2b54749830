// Package contextproj builds perspective-specific, budgeted views of the
// accumulated analysis state for the risk debators. Each perspective sees
// only the sentences relevant to its stance, so three debator prompts
// together cost far fewer tokens than three copies of the full state.
package contextproj

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/state"
)

// Perspective selects the extraction whitelist.
type Perspective string

const (
	PerspectiveAggressive   Perspective = "aggressive"
	PerspectiveConservative Perspective = "conservative"
	PerspectiveNeutral      Perspective = "neutral"
)

const (
	// sectionBudget caps each projected report section, in characters.
	sectionBudget = 6000

	// totalBudget caps the whole projection, in characters.
	totalBudget = 24000

	// TruncationMarker terminates any output clipped by a budget.
	TruncationMarker = "...[truncated]"
)

// keywordSets drive sentence selection per perspective. Matching is
// case-insensitive on whole words.
var keywordSets = map[Perspective][]string{
	PerspectiveAggressive: {
		"growth", "bullish", "upside", "opportunity", "momentum", "breakout",
		"rally", "surge", "gain", "gains", "beat", "outperform", "expansion",
		"strong", "positive", "buy",
	},
	PerspectiveConservative: {
		"risk", "risks", "bearish", "downside", "decline", "loss", "losses",
		"warning", "concern", "concerns", "debt", "volatility", "miss",
		"underperform", "weak", "negative", "sell",
	},
	PerspectiveNeutral: {
		"summary", "overall", "valuation", "balance", "balanced", "outlook",
		"estimate", "consensus", "average", "stable", "mixed", "hold",
	},
}

var keywordPatterns = func() map[Perspective]*regexp.Regexp {
	out := make(map[Perspective]*regexp.Regexp, len(keywordSets))
	for p, words := range keywordSets {
		out[p] = regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
	}
	return out
}()

var sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// sourceSections are the report fields the projector draws from, in stable
// order. The trader plan and final decision are downstream of the risk
// debate and never feed back into it.
var sourceSections = []models.ReportSection{
	models.SectionMarketReport,
	models.SectionSentimentReport,
	models.SectionNewsReport,
	models.SectionFundamentalsReport,
	models.SectionInvestmentPlan,
}

// Projector caches projections by content hash for the session's lifetime.
// Safe for concurrent use by the three debator nodes.
type Projector struct {
	enabled bool

	mu    sync.Mutex
	cache map[string]string
	hits  int
}

// New creates a projector. When enabled is false, Project returns the full
// unprojected context (still bounded by the total budget).
func New(enabled bool) *Projector {
	return &Projector{enabled: enabled, cache: make(map[string]string)}
}

// Project returns the perspective view of the state. Deterministic: equal
// inputs produce equal output. Output length never exceeds the total budget.
func (p *Projector) Project(snap *state.State, persp Perspective) string {
	key := cacheKey(snap, persp)

	p.mu.Lock()
	if cached, ok := p.cache[key]; ok {
		p.hits++
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	var out string
	if p.enabled {
		out = project(snap, persp)
	} else {
		out = fullContext(snap)
	}

	p.mu.Lock()
	p.cache[key] = out
	p.mu.Unlock()
	return out
}

// Hits reports cache reuse, for logging at session end.
func (p *Projector) Hits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits
}

func project(snap *state.State, persp Perspective) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Perspective context for %s (%s view)\n", snap.Ticker, persp))

	for _, section := range sourceSections {
		content := snap.Report(section)
		if content == "" {
			continue
		}
		extracted := extract(content, persp)
		if extracted == "" {
			continue
		}
		b.WriteString("\n## " + sectionLabel(section) + "\n")
		b.WriteString(truncateTo(extracted, sectionBudget))
		b.WriteString("\n")
	}
	return truncateTo(b.String(), totalBudget)
}

// extract keeps the sentences matching the perspective's keywords, in
// original order. When nothing matches, the section lead is kept so a sparse
// report still contributes something rather than vanishing.
func extract(content string, persp Perspective) string {
	pattern := keywordPatterns[persp]
	sentences := sentencePattern.FindAllString(content, -1)

	var kept []string
	for _, s := range sentences {
		if pattern.MatchString(s) {
			kept = append(kept, strings.TrimSpace(s))
		}
	}
	if len(kept) == 0 {
		for i, s := range sentences {
			if i == 2 {
				break
			}
			kept = append(kept, strings.TrimSpace(s))
		}
	}
	return strings.Join(kept, " ")
}

func fullContext(snap *state.State) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Full context for %s\n", snap.Ticker))
	for _, section := range sourceSections {
		content := snap.Report(section)
		if content == "" {
			continue
		}
		b.WriteString("\n## " + sectionLabel(section) + "\n")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return truncateTo(b.String(), totalBudget)
}

func sectionLabel(section models.ReportSection) string {
	return strings.ToUpper(strings.ReplaceAll(string(section), "_", " "))
}

// truncateTo clips s to at most budget characters, ending with the marker
// when clipped.
func truncateTo(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	keep := budget - len(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	return s[:keep] + TruncationMarker
}

func cacheKey(snap *state.State, persp Perspective) string {
	h := sha256.New()
	h.Write([]byte(persp))
	h.Write([]byte{0})
	h.Write([]byte(snap.Ticker))
	for _, section := range sourceSections {
		h.Write([]byte{0})
		h.Write([]byte(snap.Report(section)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
