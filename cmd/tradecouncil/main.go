// TradeCouncil server runs the multi-agent equity analysis pipeline
// behind an HTTP API with SSE progress streaming.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradecouncil/tradecouncil/pkg/api"
	"github.com/tradecouncil/tradecouncil/pkg/config"
	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/metrics"
	"github.com/tradecouncil/tradecouncil/pkg/results"
	"github.com/tradecouncil/tradecouncil/pkg/session"
	"github.com/tradecouncil/tradecouncil/pkg/tools"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load .env file if present
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"error", err)
	}

	// 2. Load and validate configuration
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded",
		"deep_model", cfg.DeepModel,
		"fast_model", cfg.FastModel,
		"max_debate_rounds", cfg.MaxDebateRounds,
		"smart_context", cfg.EnableSmartContext)

	// 3. Initialize LLM client
	client := llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL)
	slog.Info("LLM client initialized", "base_url", cfg.LLMBaseURL)

	// 4. Register builtin tools against the market data service
	registry := tools.NewRegistry()
	dataAPI := tools.NewDataAPIClient(cfg.DataAPIBaseURL)
	tools.RegisterBuiltin(registry, dataAPI, dataAPI, dataAPI)
	slog.Info("Tool registry initialized", "data_api", cfg.DataAPIBaseURL)

	// 5. Metrics registry
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	// 6. Results persistence (disk and/or Postgres, both optional)
	var persisters results.Fanout
	if cfg.ResultsDir != "" {
		persisters = append(persisters, results.NewWriter(cfg.ResultsDir))
		slog.Info("Disk results writer enabled", "dir", cfg.ResultsDir)
	}
	if cfg.PostgresDSN != "" {
		store, err := results.NewStore(context.Background(), cfg.PostgresDSN)
		if err != nil {
			slog.Error("Failed to initialize Postgres store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		persisters = append(persisters, store)
		slog.Info("Postgres store enabled")
	}
	var persister api.Persister
	if len(persisters) > 0 {
		persister = persisters
	}

	// 7. Session manager and HTTP server
	manager := session.NewManager(cfg, client, registry, m)
	server := api.NewServer(cfg, manager, persister, promRegistry)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("TradeCouncil started successfully")

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop accepting requests, let in-flight
	// sessions finish within the timeout budget.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
