package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// ExecuteParallel runs the batch of tool calls concurrently and returns one
// Tool message per call, in request order (keyed by tool_call_id, not
// arrival order). An individual failure becomes a Tool message carrying the
// error string and does not abort sibling calls.
func (inv *Invoker) ExecuteParallel(ctx context.Context, analyst models.Analyst, calls []models.ToolCall) []models.Message {
	if len(calls) == 0 {
		return nil
	}

	results := make([]models.Message, len(calls))
	durations := make([]time.Duration, len(calls))

	batchStart := time.Now()
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call models.ToolCall) {
			defer wg.Done()
			start := time.Now()
			result, err := inv.Invoke(ctx, analyst, call.Name, call.Args)
			durations[i] = time.Since(start)

			if err != nil {
				slog.Warn("Tool call failed",
					"analyst", analyst, "tool", call.Name, "call_id", call.ID, "error", err)
				results[i] = models.NewToolMessage(call.ID, call.Name, "Error: "+err.Error())
				return
			}
			results[i] = models.NewToolMessage(call.ID, call.Name, result.Text)
		}(i, call)
	}
	wg.Wait()

	// Observed speedup: serialized time over wall-clock time for the batch.
	if batch := time.Since(batchStart); batch > 0 && len(calls) > 1 {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		inv.metrics.ParallelSpeedup.Set(float64(total) / float64(batch))
	}

	return results
}
