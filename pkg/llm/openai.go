package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

const (
	maxAttempts   = 3
	retryBaseWait = 1 * time.Second
)

// OpenAIClient implements Client against any OpenAI-compatible endpoint.
// Connection-class failures are retried with exponential backoff
// (1s → 2s → 4s); API rejections surface immediately.
type OpenAIClient struct {
	client *openai.Client

	// sleep is indirect so tests can skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. baseURL may be empty for the default
// OpenAI endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		sleep:  sleepCtx,
	}
}

// Generate issues a chat completion, converting between the engine's message
// model and the wire format.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  toChatMessages(req.System, req.Messages),
		MaxTokens: req.MaxTokens,
	}
	for _, def := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.ArgsSchema,
			},
		})
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, retryBaseWait<<(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			return fromChatResponse(&resp)
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, fmt.Errorf("llm generate: %w", err)
		}
		slog.Warn("Transient LLM failure, will retry",
			"model", req.Model, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("llm generate: exhausted %d attempts: %w", maxAttempts, lastErr)
}

func toChatMessages(system string, msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range msgs {
		switch m.Role {
		case models.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case models.RoleAssistant:
			cm := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					args = []byte("{}")
				}
				cm.ToolCalls = append(cm.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, cm)
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func fromChatResponse(resp *openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm generate: response has no choices")
	}
	choice := resp.Choices[0].Message

	out := &Response{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				// Malformed arguments from the model: keep the raw string so
				// the tool layer can reject it with a readable error.
				args = map[string]any{"_raw": tc.Function.Arguments}
			}
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return out, nil
}

// isRetryable classifies connection-class errors: rate limits, upstream
// 5xx, and transport failures.
func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
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
