package tools

import "context"

// Providers are the external data collaborators behind the tool boundary.
// Implementations return ("", nil) for a legitimate "no data" outcome; the
// tool layer wraps that into the structured empty envelope.

// MarketDataProvider serves price, indicator, insider, and fundamental data.
type MarketDataProvider interface {
	PriceHistory(ctx context.Context, ticker, date string) (string, error)
	TechnicalIndicators(ctx context.Context, ticker, date string) (string, error)
	InsiderTransactions(ctx context.Context, ticker string) (string, error)
	CompanyProfile(ctx context.Context, ticker string) (string, error)
	FinancialStatements(ctx context.Context, ticker string) (string, error)
	EarningsNews(ctx context.Context, ticker string) (string, error)
}

// SocialProvider serves social-media sentiment sources.
type SocialProvider interface {
	RedditPosts(ctx context.Context, ticker string) (string, error)
	StockTwitsPosts(ctx context.Context, ticker string) (string, error)
	TwitterPosts(ctx context.Context, ticker string) (string, error)
}

// NewsProvider serves traditional news sources.
type NewsProvider interface {
	SearchNews(ctx context.Context, query string) (string, error)
	WireNews(ctx context.Context, ticker string) (string, error)
	GeneralNews(ctx context.Context, ticker string) (string, error)
}
