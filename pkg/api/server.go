// Package api exposes the HTTP surface: synchronous analysis, SSE
// streaming, cancellation, health, and metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/events"
	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/session"
)

// Persister stores completed analyses. Nil disables persistence.
type Persister interface {
	Persist(ctx context.Context, resp *models.AnalysisResponse) error
}

// Server is the HTTP layer over the session manager.
type Server struct {
	cfg       config.Config
	manager   *session.Manager
	persister Persister
	gatherer  prometheus.Gatherer
	router    *gin.Engine
}

// NewServer wires routes and middleware. persister and gatherer may be nil.
func NewServer(cfg config.Config, manager *session.Manager, persister Persister,
	gatherer prometheus.Gatherer) *Server {

	s := &Server{
		cfg:       cfg,
		manager:   manager,
		persister: persister,
		gatherer:  gatherer,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.POST("/analyze", s.Analyze)
	router.GET("/analyze/stream", s.AnalyzeStream)
	router.POST("/analyze/cancel/:id", s.CancelSession)
	router.GET("/health", s.Health)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type analyzeRequest struct {
	Ticker    string `json:"ticker"`
	TradeDate string `json:"trade_date"`
}

// normalizeTicker strips and uppercases the requested ticker; empty after
// normalization is a client error.
func normalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		return "", fmt.Errorf("ticker is required")
	}
	return ticker, nil
}

// Analyze runs a full analysis synchronously and returns the completed
// response.
func (s *Server) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ticker, err := normalizeTicker(req.Ticker)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	c.Header("X-Session-ID", id)

	resp, err := s.manager.Analyze(c.Request.Context(), session.Request{
		ID:        id,
		Ticker:    ticker,
		TradeDate: strings.TrimSpace(req.TradeDate),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.persist(c.Request.Context(), resp)
	c.JSON(http.StatusOK, resp)
}

// AnalyzeStream runs an analysis while streaming progress events as SSE.
// Each event is one JSON object in a data: frame.
func (s *Server) AnalyzeStream(c *gin.Context) {
	ticker, err := normalizeTicker(c.Query("ticker"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.NewString()
	c.Header("X-Session-ID", id)
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	stream := events.NewStream()
	ch, unsubscribe := stream.Subscribe()
	defer unsubscribe()

	go func() {
		defer stream.Close()
		resp, err := s.manager.Analyze(c.Request.Context(), session.Request{
			ID:        id,
			Ticker:    ticker,
			TradeDate: strings.TrimSpace(c.Query("trade_date")),
			Emitter:   stream,
		})
		if err != nil {
			// The terminal error event was already emitted by the session.
			return
		}
		s.persist(context.WithoutCancel(c.Request.Context()), resp)
	}()

	c.Stream(func(w io.Writer) bool {
		e, ok := <-ch
		if !ok {
			return false
		}
		data, err := json.Marshal(e)
		if err != nil {
			slog.Error("Failed to marshal event", "type", e.Type, "error", err)
			return true
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		return true
	})
}

// CancelSession cancels an in-flight session by ID.
func (s *Server) CancelSession(c *gin.Context) {
	id := c.Param("id")
	if !s.manager.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such session: " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true, "session_id": id})
}

// Health reports liveness and basic component status.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"sessions_in_flight": s.manager.InFlight(),
		"llm_configured":     s.cfg.LLMAPIKey != "" || s.cfg.LLMBaseURL != "",
		"persistence":        s.persister != nil,
	})
}

func (s *Server) persist(ctx context.Context, resp *models.AnalysisResponse) {
	if s.persister == nil || resp == nil {
		return
	}
	if err := s.persister.Persist(ctx, resp); err != nil {
		slog.Error("Failed to persist analysis", "ticker", resp.Ticker, "error", err)
	}
}
