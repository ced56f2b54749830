package tools

import (
	"context"
	"fmt"
)

// TickerArgs is the argument contract shared by ticker-scoped tools.
type TickerArgs struct {
	Ticker string `json:"ticker" jsonschema:"required,description=Equity ticker symbol"`
}

// TickerDateArgs adds the trade date for history-style tools.
type TickerDateArgs struct {
	Ticker string `json:"ticker" jsonschema:"required,description=Equity ticker symbol"`
	Date   string `json:"date" jsonschema:"description=Trade date in ISO form (YYYY-MM-DD)"`
}

// QueryArgs is the argument contract for free-text search tools.
type QueryArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
}

// funcTool adapts a fetch function into the Tool interface.
type funcTool struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

func (t *funcTool) Name() string               { return t.name }
func (t *funcTool) Description() string        { return t.description }
func (t *funcTool) ArgsSchema() map[string]any { return t.schema }

func (t *funcTool) Invoke(ctx context.Context, args map[string]any) (*Result, error) {
	text, err := t.fn(ctx, args)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return EmptyResult(fmt.Sprintf("%s returned no data", t.name)), nil
	}
	return &Result{Text: text}, nil
}

func tickerTool(name, description string, fetch func(ctx context.Context, ticker string) (string, error)) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      SchemaFor[TickerArgs](),
		fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := DecodeArgs[TickerArgs](args)
			if err != nil {
				return "", err
			}
			if a.Ticker == "" {
				return "", &PermanentError{Cause: fmt.Errorf("%s: ticker is required", name)}
			}
			return fetch(ctx, a.Ticker)
		},
	}
}

func tickerDateTool(name, description string, fetch func(ctx context.Context, ticker, date string) (string, error)) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      SchemaFor[TickerDateArgs](),
		fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := DecodeArgs[TickerDateArgs](args)
			if err != nil {
				return "", err
			}
			if a.Ticker == "" {
				return "", &PermanentError{Cause: fmt.Errorf("%s: ticker is required", name)}
			}
			return fetch(ctx, a.Ticker, a.Date)
		},
	}
}

// RegisterBuiltin registers the full toolkit backed by the given providers.
func RegisterBuiltin(reg *Registry, market MarketDataProvider, social SocialProvider, news NewsProvider) {
	reg.Register(tickerDateTool(ToolPriceHistory,
		"Fetch recent daily price history (OHLCV) for a ticker.", market.PriceHistory))
	reg.Register(tickerDateTool(ToolTechnicalIndicators,
		"Fetch technical indicators (moving averages, RSI, MACD) for a ticker.", market.TechnicalIndicators))
	reg.Register(tickerTool(ToolInsiderTransactions,
		"Fetch recent insider buy/sell transactions for a ticker.", market.InsiderTransactions))
	reg.Register(tickerTool(ToolCompanyProfile,
		"Fetch the company profile and key fundamentals for a ticker.", market.CompanyProfile))
	reg.Register(tickerTool(ToolFinancialStatements,
		"Fetch latest income statement, balance sheet, and cash flow summaries.", market.FinancialStatements))
	reg.Register(tickerTool(ToolEarningsNews,
		"Fetch earnings-related news and surprises for a ticker.", market.EarningsNews))

	reg.Register(tickerTool(ToolRedditSentiment,
		"Fetch recent Reddit discussion and sentiment for a ticker.", social.RedditPosts))
	reg.Register(tickerTool(ToolStockTwitsSentiment,
		"Fetch recent StockTwits messages and sentiment for a ticker.", social.StockTwitsPosts))
	reg.Register(tickerTool(ToolTwitterSentiment,
		"Fetch recent Twitter/X posts and sentiment for a ticker.", social.TwitterPosts))
	reg.Register(tickerTool(ToolGeneralNews,
		"Fetch general market news for broader context.", news.GeneralNews))

	reg.Register(&funcTool{
		name:        ToolSearchNews,
		description: "Search traditional news outlets for articles matching a query.",
		schema:      SchemaFor[QueryArgs](),
		fn: func(ctx context.Context, args map[string]any) (string, error) {
			a, err := DecodeArgs[QueryArgs](args)
			if err != nil {
				return "", err
			}
			if a.Query == "" {
				return "", &PermanentError{Cause: fmt.Errorf("search_news: query is required")}
			}
			return news.SearchNews(ctx, a.Query)
		},
	})
	reg.Register(tickerTool(ToolWireNews,
		"Fetch wire-service headlines for a ticker (fallback news source).", news.WireNews))
}
