package session

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tradecouncil/tradecouncil/pkg/llm"
	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// HoldNoSignal is the processed signal for an empty trade decision.
const HoldNoSignal = "HOLD — No signal provided"

var signals = []string{"BUY", "SELL", "HOLD"}

// SignalProcessor reduces the final trade decision text to one of BUY, SELL,
// or HOLD using the fast model. It never fails: when the model is
// unavailable or answers off-format, the signal is extracted from the
// decision text directly, defaulting to HOLD.
type SignalProcessor struct {
	client llm.Client
	model  string
}

// NewSignalProcessor wires the processor to the fast model.
func NewSignalProcessor(client llm.Client, model string) *SignalProcessor {
	return &SignalProcessor{client: client, model: model}
}

// Process returns the signal for the given decision text.
func (p *SignalProcessor) Process(ctx context.Context, decision string) string {
	if strings.TrimSpace(decision) == "" {
		return HoldNoSignal
	}

	resp, err := p.client.Generate(ctx, &llm.Request{
		Model: p.model,
		System: "Reduce the trade decision to its actionable signal. " +
			"Respond with exactly one word: BUY, SELL, or HOLD.",
		Messages: []models.Message{models.NewHumanMessage(decision)},
	})
	if err == nil {
		if sig, ok := extractSignal(resp.Content); ok {
			return sig
		}
		slog.Warn("Signal processor answered off-format", "content", resp.Content)
	} else {
		slog.Warn("Signal processor call failed, extracting from decision text", "error", err)
	}

	if sig, ok := extractSignal(decision); ok {
		return sig
	}
	return "HOLD"
}

// extractSignal returns the first signal word occurring in the text.
func extractSignal(text string) (string, bool) {
	upper := strings.ToUpper(text)
	best, bestIdx := "", -1
	for _, sig := range signals {
		if i := strings.Index(upper, sig); i >= 0 && (bestIdx < 0 || i < bestIdx) {
			best, bestIdx = sig, i
		}
	}
	return best, bestIdx >= 0
}
