package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultCompletionTimeout = 30 * time.Second

// CerebrasClient implements LLMClient against Cerebras' OpenAI-compatible
// chat completion API. Any endpoint speaking the same protocol works by
// overriding the base URL.
type CerebrasClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewCerebrasClient creates an LLM client for an OpenAI-compatible endpoint.
// A zero timeout uses the default per-call deadline.
func NewCerebrasClient(apiKey, baseURL, model string, timeout time.Duration) (*CerebrasClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agent: llm api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "llama3.3-70b"
	}
	if timeout <= 0 {
		timeout = defaultCompletionTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}

	return &CerebrasClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// Complete sends a chat completion request and returns the generated text.
func (c *CerebrasClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+len(req.Messages))
	for _, system := range req.System {
		if strings.TrimSpace(system) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("agent: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("agent: chat completion returned no choices")
	}

	return LLMResponse{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: TokenUsage{
			InputTokens:  int32(resp.Usage.PromptTokens),
			OutputTokens: int32(resp.Usage.CompletionTokens),
			TotalTokens:  int32(resp.Usage.TotalTokens),
		},
	}, nil
}
