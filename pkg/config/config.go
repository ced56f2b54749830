// Package config provides the immutable per-session configuration for the
// analysis engine. Defaults are produced by Default(); environment overrides
// are applied once at startup by FromEnv(). Sessions receive the struct by
// value and never mutate it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every recognized engine option.
type Config struct {
	// Investment debate
	MaxDebateRounds         int // 1–5
	MaxRiskDiscussRounds    int // reserved for iterated risk rounds
	ForceConsensusThreshold int // 0 disables; 1–10 enables quality-score force-consensus

	// Tool invoker
	MaxToolCallsPerAnalyst int
	ToolTimeout            time.Duration
	ToolRetryAttempts      int
	ToolCacheTTL           time.Duration

	// Engine
	ExecutionTimeout time.Duration
	RecursionLimit   int

	// Context handling
	EnableSmartContext bool

	// Analyst loop
	MaxChannelMessages int // soft bound before force-completion

	// Per-agent response word targets. Missing agents fall back to
	// DefaultWordLimit.
	ResponseWordLimits map[string]int
	DefaultWordLimit   int

	// LLM
	LLMBaseURL   string
	LLMAPIKey    string
	DeepModel    string // analysts, researchers, judges
	FastModel    string // signal processor
	LLMMaxtokens int

	// HTTP
	ListenAddr string

	// Market data service backing the builtin tools.
	DataAPIBaseURL string

	// Results persistence
	ResultsDir  string // empty disables disk artifacts
	PostgresDSN string // empty disables the Postgres store
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		MaxDebateRounds:         3,
		MaxRiskDiscussRounds:    1,
		ForceConsensusThreshold: 0,
		MaxToolCallsPerAnalyst:  3,
		ToolTimeout:             30 * time.Second,
		ToolRetryAttempts:       2,
		ToolCacheTTL:            300 * time.Second,
		ExecutionTimeout:        120 * time.Second,
		RecursionLimit:          50,
		EnableSmartContext:      true,
		MaxChannelMessages:      6,
		ResponseWordLimits: map[string]int{
			"market_analyst":       300,
			"social_analyst":       250,
			"news_analyst":         300,
			"fundamentals_analyst": 300,
			"bull_researcher":      250,
			"bear_researcher":      250,
			"research_judge":       150,
			"research_manager":     400,
			"trader":               300,
			"risky_debator":        200,
			"safe_debator":         200,
			"neutral_debator":      200,
			"risk_judge":           350,
		},
		DefaultWordLimit: 300,
		DeepModel:        "gpt-4o",
		FastModel:        "gpt-4o-mini",
		LLMMaxtokens:     4096,
		ListenAddr:       ":8080",
		DataAPIBaseURL:   "http://localhost:9000",
	}
}

// FromEnv returns Default() with environment overrides applied.
// Unparseable numeric values are ignored in favor of the default.
func FromEnv() Config {
	cfg := Default()
	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	if v := os.Getenv("DEEP_MODEL"); v != "" {
		cfg.DeepModel = v
	}
	if v := os.Getenv("FAST_MODEL"); v != "" {
		cfg.FastModel = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATA_API_BASE_URL"); v != "" {
		cfg.DataAPIBaseURL = v
	}
	cfg.ResultsDir = os.Getenv("RESULTS_DIR")
	cfg.PostgresDSN = os.Getenv("POSTGRES_DSN")

	intEnv(&cfg.MaxDebateRounds, "MAX_DEBATE_ROUNDS")
	intEnv(&cfg.MaxRiskDiscussRounds, "MAX_RISK_DISCUSS_ROUNDS")
	intEnv(&cfg.ForceConsensusThreshold, "FORCE_CONSENSUS_THRESHOLD")
	intEnv(&cfg.MaxToolCallsPerAnalyst, "MAX_TOTAL_TOOL_CALLS_PER_ANALYST")
	intEnv(&cfg.ToolRetryAttempts, "TOOL_RETRY_ATTEMPTS")
	intEnv(&cfg.RecursionLimit, "RECURSION_LIMIT")
	durEnv(&cfg.ToolTimeout, "TOOL_TIMEOUT_SECONDS")
	durEnv(&cfg.ToolCacheTTL, "TOOL_CACHE_TTL_SECONDS")
	durEnv(&cfg.ExecutionTimeout, "EXECUTION_TIMEOUT_SECONDS")
	if v := os.Getenv("ENABLE_SMART_CONTEXT"); v != "" {
		cfg.EnableSmartContext = v == "true" || v == "1"
	}
	return cfg
}

func intEnv(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func durEnv(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

// Validate checks all option ranges. Returns the first violation found.
func (c Config) Validate() error {
	if c.MaxDebateRounds < 1 || c.MaxDebateRounds > 5 {
		return fmt.Errorf("max_debate_rounds must be in [1,5], got %d", c.MaxDebateRounds)
	}
	if c.MaxRiskDiscussRounds < 1 {
		return fmt.Errorf("max_risk_discuss_rounds must be >= 1, got %d", c.MaxRiskDiscussRounds)
	}
	if c.ForceConsensusThreshold < 0 || c.ForceConsensusThreshold > 10 {
		return fmt.Errorf("force_consensus_threshold must be in [0,10], got %d", c.ForceConsensusThreshold)
	}
	if c.MaxToolCallsPerAnalyst < 1 {
		return fmt.Errorf("max_total_tool_calls_per_analyst must be >= 1, got %d", c.MaxToolCallsPerAnalyst)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("tool_timeout_seconds must be positive, got %s", c.ToolTimeout)
	}
	if c.ToolRetryAttempts < 0 {
		return fmt.Errorf("tool_retry_attempts must be >= 0, got %d", c.ToolRetryAttempts)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution_timeout_seconds must be positive, got %s", c.ExecutionTimeout)
	}
	if c.RecursionLimit < 1 || c.RecursionLimit > 100 {
		return fmt.Errorf("recursion_limit must be in [1,100], got %d", c.RecursionLimit)
	}
	return nil
}

// WordLimit returns the response word target for the given agent.
func (c Config) WordLimit(agent string) int {
	if n, ok := c.ResponseWordLimits[agent]; ok && n > 0 {
		return n
	}
	return c.DefaultWordLimit
}
