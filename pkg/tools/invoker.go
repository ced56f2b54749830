package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradecouncil/tradecouncil/pkg/metrics"
	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// retryBaseWait is the initial backoff before the first retry; each
// subsequent wait doubles.
const retryBaseWait = 1 * time.Second

// Invoker executes tools on behalf of analysts, enforcing per-analyst
// budgets, argument deduplication, result caching, per-call timeouts, and
// transient-error retries.
//
// The cache is process-wide (shared across sessions); the ledger is
// per-session.
type Invoker struct {
	registry *Registry
	cache    *Cache
	ledger   *Ledger
	metrics  *metrics.Metrics

	callTimeout   time.Duration
	retryAttempts int

	// sleep is indirect so tests can skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInvoker wires an invoker. ledger is per-session; registry, cache, and
// metrics are shared.
func NewInvoker(registry *Registry, cache *Cache, ledger *Ledger, m *metrics.Metrics,
	callTimeout time.Duration, retryAttempts int) *Invoker {
	return &Invoker{
		registry:      registry,
		cache:         cache,
		ledger:        ledger,
		metrics:       m,
		callTimeout:   callTimeout,
		retryAttempts: retryAttempts,
		sleep:         sleepCtx,
	}
}

// CanCall checks the budget and dedup rules without invoking anything.
func (inv *Invoker) CanCall(analyst models.Analyst, toolName string, args map[string]any) (bool, string) {
	return inv.ledger.CanCall(analyst, toolName, args)
}

// Total returns the analyst's committed tool-call count.
func (inv *Invoker) Total(analyst models.Analyst) int {
	return inv.ledger.Total(analyst)
}

// Invoke executes a named tool for an analyst.
//
// Cache hits return immediately and do not debit the budget. Misses dispatch
// with a per-call timeout and retry transient failures with exponential
// backoff; permanent failures surface immediately. Successful results are
// cached and recorded in the ledger.
func (inv *Invoker) Invoke(ctx context.Context, analyst models.Analyst, toolName string, args map[string]any) (*Result, error) {
	tool, ok := inv.registry.Get(toolName)
	if !ok {
		return nil, &ToolError{Kind: KindUnknownTool, Message: fmt.Sprintf("tool %q is not registered", toolName)}
	}

	key := CacheKey(toolName, args)
	if cached, hit := inv.cache.Get(key); hit {
		inv.metrics.ToolCacheHits.Inc()
		slog.Debug("Tool cache hit", "tool", toolName, "analyst", analyst)
		return cached, nil
	}
	inv.metrics.ToolCacheMisses.Inc()

	attempts := inv.retryAttempts + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := retryBaseWait << (attempt - 1)
			if err := inv.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		result, err := inv.invokeOnce(ctx, tool, args)
		if err == nil {
			inv.cache.Set(key, result)
			inv.ledger.Record(analyst, toolName, args)
			return result, nil
		}
		lastErr = err

		if !isTransient(tool, err) {
			inv.metrics.ToolCallFailures.WithLabelValues(toolName, string(KindPermanent)).Inc()
			return nil, &ToolError{Kind: KindPermanent, Message: err.Error(), Cause: err}
		}
		slog.Warn("Transient tool failure, will retry",
			"tool", toolName, "analyst", analyst, "attempt", attempt+1, "error", err)
	}

	inv.metrics.ToolCallFailures.WithLabelValues(toolName, string(KindTransientExhausted)).Inc()
	return nil, &ToolError{
		Kind:    KindTransientExhausted,
		Message: fmt.Sprintf("%s failed after %d attempts: %v", toolName, attempts, lastErr),
		Cause:   lastErr,
	}
}

func (inv *Invoker) invokeOnce(ctx context.Context, tool Tool, args map[string]any) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, inv.callTimeout)
	defer cancel()

	start := time.Now()
	result, err := tool.Invoke(callCtx, args)
	inv.metrics.ToolCallDuration.WithLabelValues(tool.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &PermanentError{Cause: fmt.Errorf("tool %s returned nil result", tool.Name())}
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
