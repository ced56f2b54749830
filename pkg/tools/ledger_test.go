package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

func TestNormalizeArgs_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"ticker": "AAPL", "date": "2025-01-02"}
	b := map[string]any{"date": "2025-01-02", "ticker": "AAPL"}
	assert.Equal(t, NormalizeArgs(a), NormalizeArgs(b))
	assert.Equal(t, HashArgs(a), HashArgs(b))
}

func TestNormalizeArgs_Empty(t *testing.T) {
	assert.Equal(t, "{}", NormalizeArgs(nil))
	assert.Equal(t, "{}", NormalizeArgs(map[string]any{}))
}

func TestCacheKey_DistinguishesTools(t *testing.T) {
	args := map[string]any{"ticker": "AAPL"}
	assert.NotEqual(t, CacheKey("get_price_history", args), CacheKey("get_wire_news", args))
}

func TestLedger_BudgetEnforced(t *testing.T) {
	l := NewLedger(2)

	ok, _ := l.CanCall(models.AnalystMarket, ToolPriceHistory, map[string]any{"ticker": "A"})
	assert.True(t, ok)
	l.Record(models.AnalystMarket, ToolPriceHistory, map[string]any{"ticker": "A"})
	l.Record(models.AnalystMarket, ToolCompanyProfile, map[string]any{"ticker": "A"})

	ok, reason := l.CanCall(models.AnalystMarket, ToolInsiderTransactions, map[string]any{"ticker": "A"})
	assert.False(t, ok)
	assert.Contains(t, reason, "budget exhausted")

	// Budgets are per analyst.
	ok, _ = l.CanCall(models.AnalystNews, ToolSearchNews, map[string]any{"q": "x"})
	assert.True(t, ok)
}

func TestLedger_DuplicateArgsRejected(t *testing.T) {
	l := NewLedger(5)
	args := map[string]any{"ticker": "AAPL", "date": "2025-01-02"}
	l.Record(models.AnalystMarket, ToolPriceHistory, args)

	// Same args, different key order.
	ok, reason := l.CanCall(models.AnalystMarket, ToolPriceHistory,
		map[string]any{"date": "2025-01-02", "ticker": "AAPL"})
	assert.False(t, ok)
	assert.Contains(t, reason, "duplicate call")

	// Different args pass.
	ok, _ = l.CanCall(models.AnalystMarket, ToolPriceHistory, map[string]any{"ticker": "MSFT"})
	assert.True(t, ok)

	// Same args by a different analyst pass.
	ok, _ = l.CanCall(models.AnalystFundamentals, ToolPriceHistory, args)
	assert.True(t, ok)
}

func TestToolkits_NewsAndSocialDisjoint(t *testing.T) {
	social := map[string]bool{}
	for _, name := range Toolkit(models.AnalystSocial) {
		social[name] = true
	}
	for _, name := range Toolkit(models.AnalystNews) {
		assert.False(t, social[name], "tool %s must not be shared between news and social", name)
	}
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(models.AnalystMarket, ToolPriceHistory))
	assert.False(t, Allowed(models.AnalystNews, ToolRedditSentiment))
	assert.False(t, Allowed(models.AnalystSocial, ToolSearchNews))
}
