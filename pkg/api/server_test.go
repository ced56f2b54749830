package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/metrics"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/session"
	"github.com/tradecouncil/tradecouncil/pkg/tools"
)

type recordPersister struct {
	mu  sync.Mutex
	got []*models.AnalysisResponse
}

func (p *recordPersister) Persist(ctx context.Context, resp *models.AnalysisResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, resp)
	return nil
}

func (p *recordPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func newTestServer(t *testing.T) (*Server, *recordPersister) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	manager := session.NewManager(config.Default(),
		&llm.FakeClient{Default: &llm.Response{Content: "ok"}},
		tools.NewRegistry(), metrics.New(reg))
	persister := &recordPersister{}
	return NewServer(config.Default(), manager, persister, reg), persister
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnalyze_EmptyTickerRejected(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{`{}`, `{"ticker":"   "}`} {
		rec := postJSON(t, s, "/analyze", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
		assert.Contains(t, rec.Body.String(), "ticker is required")
	}
}

func TestAnalyze_MalformedBodyRejected(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postJSON(t, s, "/analyze", `{"ticker":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_NormalizesTickerAndPersists(t *testing.T) {
	s, persister := newTestServer(t)

	rec := postJSON(t, s, "/analyze", `{"ticker":"  aapl  ","trade_date":"2025-01-02"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Session-ID"))

	var resp models.AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, "2025-01-02", resp.AnalysisDate)
	assert.NotEmpty(t, resp.ProcessedSignal)

	assert.Equal(t, 1, persister.count())
}

func TestAnalyzeStream_EmitsEventsUntilComplete(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/analyze/stream?ticker=AAPL")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `"type":"status"`)
	assert.Contains(t, text, `"type":"progress"`)
	assert.Contains(t, text, `"type":"complete"`)

	// Every frame is a data: line carrying one JSON object.
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected frame %q", line)
		assert.True(t, json.Valid([]byte(strings.TrimPrefix(line, "data: "))))
	}
}

func TestAnalyzeStream_MissingTickerRejected(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analyze/stream", nil)
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel_UnknownSession(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postJSON(t, s, "/analyze/cancel/nope", ``)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["sessions_in_flight"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
