package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const openRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// Client is the completion surface the chat, extraction, and agent layers
// consume.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*CompletionResult, error)
	CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*CompletionResult, error)
}

// OpenRouter calls the OpenRouter chat completions API, non-streaming.
type OpenRouter struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewOpenRouter(apiKey, model string) *OpenRouter {
	return &OpenRouter{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    openRouterURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type openRouterRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
}

type openRouterResponse struct {
	Choices []struct {
		Message CompletionResult `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

func (c *OpenRouter) Complete(ctx context.Context, messages []Message) (*CompletionResult, error) {
	return c.call(ctx, messages, nil)
}

func (c *OpenRouter) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*CompletionResult, error) {
	return c.call(ctx, messages, tools)
}

func (c *OpenRouter) call(ctx context.Context, messages []Message, tools []ToolDefinition) (*CompletionResult, error) {
	body, err := json.Marshal(openRouterRequest{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: 0.3,
		MaxTokens:   4096,
		Stream:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal openrouter request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build openrouter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "Carmenta")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Provider: "openrouter", Message: err.Error()}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{Provider: "openrouter", Message: err.Error()}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "openrouter", Status: httpResp.StatusCode, Message: string(respBody)}
	}

	var resp openRouterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("llm: parse openrouter response: %w", err)
	}
	if resp.Error != nil {
		return nil, &APIError{Provider: "openrouter", Status: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty openrouter response")
	}

	result := resp.Choices[0].Message
	return &result, nil
}

var _ Client = (*OpenRouter)(nil)
