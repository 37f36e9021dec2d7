package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsRetryableStatusFirst(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&APIError{Provider: "openrouter", Status: 429, Message: "rate limited"}, true},
		{&APIError{Provider: "openrouter", Status: 500, Message: "oops"}, true},
		{&APIError{Provider: "openrouter", Status: 503, Message: "overloaded"}, true},
		{&APIError{Provider: "openrouter", Status: 401, Message: "bad key"}, false},
		// a 400 whose body mentions "timeout" must still be non-retryable:
		// the status decides, the substring does not
		{&APIError{Provider: "openrouter", Status: 400, Message: "timeout field invalid"}, false},
		// statusless transport errors fall back to substrings
		{&APIError{Provider: "openrouter", Status: 0, Message: "dial tcp: i/o timeout"}, true},
		{&APIError{Provider: "openrouter", Status: 0, Message: "connection refused"}, true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("invalid request payload"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestOpenRouterComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		var req openRouterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Stream {
			t.Error("request must not stream")
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "hi there"}}},
		})
	}))
	defer srv.Close()

	c := NewOpenRouter("test-key", "test-model")
	c.baseURL = srv.URL

	res, err := c.Complete(context.Background(), []Message{
		TextMessage("system", "be brief"),
		TextMessage("user", "hello"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text() != "hi there" {
		t.Errorf("text = %q", res.Text())
	}
}

func TestOpenRouterToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openRouterRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "create_document" {
			t.Errorf("tools = %+v", req.Tools)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{
				"content": nil,
				"tool_calls": []map[string]any{{
					"id":   "call_1",
					"type": "function",
					"function": map[string]any{
						"name":      "create_document",
						"arguments": `{"path":"notes.x"}`,
					},
				}},
			}}},
		})
	}))
	defer srv.Close()

	c := NewOpenRouter("k", "m")
	c.baseURL = srv.URL

	res, err := c.CompleteWithTools(context.Background(),
		[]Message{TextMessage("user", "save this")},
		[]ToolDefinition{{
			Type: "function",
			Function: ToolFunctionSchema{
				Name:       "create_document",
				Parameters: json.RawMessage(`{"type":"object"}`),
			},
		}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Text() != "" {
		t.Errorf("text = %q, want empty", res.Text())
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Function.Name != "create_document" {
		t.Fatalf("tool calls = %+v", res.ToolCalls)
	}
}

func TestOpenRouterHTTPErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenRouter("k", "m")
	c.baseURL = srv.URL

	_, err := c.Complete(context.Background(), []Message{TextMessage("user", "x")})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 429 {
		t.Fatalf("err = %v, want APIError with 429", err)
	}
	if !IsRetryable(err) {
		t.Error("429 must be retryable")
	}
}

func TestGoogleResultMapsFunctionCalls(t *testing.T) {
	res := googleResult(googleContent{
		Role: "model",
		Parts: []googlePart{
			{Text: "Working on it. "},
			{FunctionCall: &googleFuncCall{Name: "create_document", Args: json.RawMessage(`{"path":"a.b"}`)}},
		},
	})
	if res.Text() != "Working on it. " {
		t.Errorf("text = %q", res.Text())
	}
	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Function.Name != "create_document" {
		t.Fatalf("tool calls = %+v", res.ToolCalls)
	}
	if res.ToolCalls[0].ID == "" {
		t.Error("synthesized call ID must be non-empty")
	}
}
