// Package llm provides the LLM client boundary for the engine. The engine
// depends only on the Client interface; the production implementation talks
// to any OpenAI-compatible endpoint.
package llm

import (
	"context"

	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/tools"
)

// Request is one generation call. Tools may be nil to force a text-only
// response.
type Request struct {
	Model     string
	System    string
	Messages  []models.Message
	Tools     []tools.Definition
	MaxTokens int
}

// Response is the assistant's reply. ToolCalls is non-empty when the model
// chose to call tools instead of (or in addition to) answering.
type Response struct {
	Content   string
	ToolCalls []models.ToolCall
}

// Client generates assistant responses. Implementations must be safe for
// concurrent use; the engine issues calls from parallel nodes.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}
