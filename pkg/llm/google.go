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

const googleURLFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// Google calls the Gemini generateContent API, translating to and from the
// shared OpenAI-compatible message shape.
type Google struct {
	httpClient *http.Client
	apiKey     string
	model      string
}

func NewGoogle(apiKey, model string) *Google {
	return &Google{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
	}
}

type googleRequest struct {
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	Contents          []googleContent `json:"contents"`
	Tools             []googleTools   `json:"tools,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *googleFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *googleFuncResp `json:"functionResponse,omitempty"`
}

type googleFuncCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type googleFuncResp struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type googleTools struct {
	FunctionDeclarations []googleFuncDecl `json:"functionDeclarations"`
}

type googleFuncDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Google) Complete(ctx context.Context, messages []Message) (*CompletionResult, error) {
	return c.call(ctx, messages, nil)
}

func (c *Google) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (*CompletionResult, error) {
	return c.call(ctx, messages, tools)
}

func (c *Google) call(ctx context.Context, messages []Message, tools []ToolDefinition) (*CompletionResult, error) {
	reqBody := googleRequest{}
	for _, m := range messages {
		switch m.Role {
		case "system":
			reqBody.SystemInstruction = &googleContent{Parts: []googlePart{{Text: m.Text()}}}
		case "assistant":
			content := googleContent{Role: "model"}
			if m.Content != nil && *m.Content != "" {
				content.Parts = append(content.Parts, googlePart{Text: *m.Content})
			}
			for _, tc := range m.ToolCalls {
				content.Parts = append(content.Parts, googlePart{FunctionCall: &googleFuncCall{
					Name: tc.Function.Name,
					Args: json.RawMessage(tc.Function.Arguments),
				}})
			}
			reqBody.Contents = append(reqBody.Contents, content)
		case "tool":
			reqBody.Contents = append(reqBody.Contents, googleContent{
				Role: "user",
				Parts: []googlePart{{FunctionResponse: &googleFuncResp{
					Name:     m.ToolCallID,
					Response: json.RawMessage(fmt.Sprintf(`{"result":%q}`, m.Text())),
				}}},
			})
		default:
			reqBody.Contents = append(reqBody.Contents, googleContent{
				Role:  "user",
				Parts: []googlePart{{Text: m.Text()}},
			})
		}
	}
	if len(tools) > 0 {
		decls := make([]googleFuncDecl, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, googleFuncDecl{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			})
		}
		reqBody.Tools = []googleTools{{FunctionDeclarations: decls}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal google request: %w", err)
	}

	url := fmt.Sprintf(googleURLFormat, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Provider: "google", Message: err.Error()}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &APIError{Provider: "google", Message: err.Error()}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "google", Status: httpResp.StatusCode, Message: string(respBody)}
	}

	var resp googleResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("llm: parse google response: %w", err)
	}
	if resp.Error != nil {
		return nil, &APIError{Provider: "google", Status: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("llm: empty google response")
	}

	return googleResult(resp.Candidates[0].Content), nil
}

// googleResult folds candidate parts back into the shared result shape,
// synthesizing tool call IDs (Gemini has none).
func googleResult(content googleContent) *CompletionResult {
	result := &CompletionResult{}
	var text string
	for i, p := range content.Parts {
		if p.Text != "" {
			text += p.Text
		}
		if p.FunctionCall != nil {
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:   fmt.Sprintf("call_%d", i),
				Type: "function",
				Function: FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(p.FunctionCall.Args),
				},
			})
		}
	}
	if text != "" {
		result.Content = &text
	}
	return result
}

var _ Client = (*Google)(nil)
