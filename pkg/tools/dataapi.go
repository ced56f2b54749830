package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DataAPIClient implements the provider interfaces against a market-data
// REST gateway. Each endpoint returns {"available": bool, "data": string}.
// 5xx responses are transient (retried by the invoker); 4xx responses are
// permanent.
type DataAPIClient struct {
	baseURL string
	client  *http.Client
}

var (
	_ MarketDataProvider = (*DataAPIClient)(nil)
	_ SocialProvider     = (*DataAPIClient)(nil)
	_ NewsProvider       = (*DataAPIClient)(nil)
)

// NewDataAPIClient creates a client for the given gateway base URL.
func NewDataAPIClient(baseURL string) *DataAPIClient {
	return &DataAPIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type dataEnvelope struct {
	Available bool   `json:"available"`
	Data      string `json:"data"`
	Reason    string `json:"reason"`
}

// transientStatusError marks retryable upstream failures (5xx).
type transientStatusError struct {
	status int
	path   string
}

func (e *transientStatusError) Error() string {
	return fmt.Sprintf("data api %s: upstream status %d", e.path, e.status)
}

// IsTransientError classifies HTTP failures: 5xx and transport errors are
// transient, everything else permanent.
func (c *DataAPIClient) IsTransientError(err error) bool {
	var tse *transientStatusError
	if errors.As(err, &tse) {
		return true
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *DataAPIClient) fetch(ctx context.Context, path string, params url.Values) (string, error) {
	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &PermanentError{Cause: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("data api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", &transientStatusError{status: resp.StatusCode, path: path}
	}
	if resp.StatusCode >= 400 {
		return "", &PermanentError{Cause: fmt.Errorf("data api %s: status %d", path, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("data api %s: read body: %w", path, err)
	}
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", &PermanentError{Cause: fmt.Errorf("data api %s: decode: %w", path, err)}
	}
	if !env.Available {
		return "", nil
	}
	return env.Data, nil
}

func (c *DataAPIClient) tickerFetch(ctx context.Context, path, ticker string) (string, error) {
	return c.fetch(ctx, path, url.Values{"symbol": {ticker}})
}

func (c *DataAPIClient) tickerDateFetch(ctx context.Context, path, ticker, date string) (string, error) {
	params := url.Values{"symbol": {ticker}}
	if date != "" {
		params.Set("date", date)
	}
	return c.fetch(ctx, path, params)
}

func (c *DataAPIClient) PriceHistory(ctx context.Context, ticker, date string) (string, error) {
	return c.tickerDateFetch(ctx, "/v1/market/price-history", ticker, date)
}

func (c *DataAPIClient) TechnicalIndicators(ctx context.Context, ticker, date string) (string, error) {
	return c.tickerDateFetch(ctx, "/v1/market/indicators", ticker, date)
}

func (c *DataAPIClient) InsiderTransactions(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/market/insider-transactions", ticker)
}

func (c *DataAPIClient) CompanyProfile(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/market/company-profile", ticker)
}

func (c *DataAPIClient) FinancialStatements(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/fundamentals/statements", ticker)
}

func (c *DataAPIClient) EarningsNews(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/fundamentals/earnings-news", ticker)
}

func (c *DataAPIClient) RedditPosts(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/social/reddit", ticker)
}

func (c *DataAPIClient) StockTwitsPosts(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/social/stocktwits", ticker)
}

func (c *DataAPIClient) TwitterPosts(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/social/twitter", ticker)
}

func (c *DataAPIClient) SearchNews(ctx context.Context, query string) (string, error) {
	return c.fetch(ctx, "/v1/news/search", url.Values{"q": {query}})
}

func (c *DataAPIClient) WireNews(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/news/wire", ticker)
}

func (c *DataAPIClient) GeneralNews(ctx context.Context, ticker string) (string, error) {
	return c.tickerFetch(ctx, "/v1/news/general", ticker)
}
