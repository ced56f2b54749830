package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// Canonical tool names. Toolkit membership below is the capability-scoping
// source of truth; analysts cannot call outside their toolkit.
const (
	ToolPriceHistory        = "get_price_history"
	ToolTechnicalIndicators = "get_technical_indicators"
	ToolInsiderTransactions = "get_insider_transactions"
	ToolCompanyProfile      = "get_company_profile"

	ToolRedditSentiment     = "get_reddit_sentiment"
	ToolStockTwitsSentiment = "get_stocktwits_sentiment"
	ToolTwitterSentiment    = "get_twitter_sentiment"
	ToolGeneralNews         = "get_general_news"

	ToolSearchNews = "search_news"
	ToolWireNews   = "get_wire_news"

	ToolFinancialStatements = "get_financial_statements"
	ToolEarningsNews        = "get_earnings_news"
)

// toolkits maps each analyst to its allowed tool names.
var toolkits = map[models.Analyst][]string{
	models.AnalystMarket: {
		ToolPriceHistory, ToolTechnicalIndicators,
		ToolInsiderTransactions, ToolCompanyProfile,
	},
	models.AnalystSocial: {
		ToolRedditSentiment, ToolStockTwitsSentiment,
		ToolTwitterSentiment, ToolGeneralNews,
	},
	models.AnalystNews: {
		ToolSearchNews, ToolWireNews,
	},
	models.AnalystFundamentals: {
		ToolFinancialStatements, ToolInsiderTransactions, ToolEarningsNews,
	},
}

func init() {
	// News and social toolkits must never share a tool: the news report is
	// scrubbed of social sources and must not be fed by them.
	social := make(map[string]bool, len(toolkits[models.AnalystSocial]))
	for _, name := range toolkits[models.AnalystSocial] {
		social[name] = true
	}
	for _, name := range toolkits[models.AnalystNews] {
		if social[name] {
			panic(fmt.Sprintf("toolkit overlap: %s is in both news and social toolkits", name))
		}
	}
}

// Toolkit returns the allowed tool names for an analyst, sorted.
func Toolkit(a models.Analyst) []string {
	names := make([]string, len(toolkits[a]))
	copy(names, toolkits[a])
	sort.Strings(names)
	return names
}

// Allowed reports whether the analyst's toolkit contains the tool.
func Allowed(a models.Analyst, toolName string) bool {
	for _, name := range toolkits[a] {
		if name == toolName {
			return true
		}
	}
	return false
}

// Definition describes a tool to the LLM binding layer.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ArgsSchema  map[string]any `json:"args_schema"`
}

// Registry holds the registered tool implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are a programming error.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		panic(fmt.Sprintf("Registry.Register: duplicate tool %q", t.Name()))
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the LLM-facing definitions for the analyst's toolkit.
// Tools in the toolkit but not registered are skipped.
func (r *Registry) Definitions(a models.Analyst) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []Definition
	for _, name := range Toolkit(a) {
		if t, ok := r.tools[name]; ok {
			defs = append(defs, Definition{
				Name:        t.Name(),
				Description: t.Description(),
				ArgsSchema:  t.ArgsSchema(),
			})
		}
	}
	return defs
}
