// Package llm provides non-streaming chat completion clients for OpenRouter
// and Google, with shared message/tool types in the OpenAI-compatible shape.
package llm

import "encoding/json"

// Message is one chat turn. Content is a pointer: assistant turns that carry
// only tool calls have a null content on the wire.
type Message struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, "" when null.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// TextMessage builds a plain text turn.
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: &content}
}

// ToolResultMessage builds the turn answering one tool call.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: "tool", Content: &content, ToolCallID: callID}
}

// ToolCall is a model-requested function invocation.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

type ToolFunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionResult is the model's reply: text, tool calls, or both.
type CompletionResult struct {
	Content   *string    `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Text returns the reply text, "" when the model sent none.
func (r *CompletionResult) Text() string {
	if r == nil || r.Content == nil {
		return ""
	}
	return *r.Content
}
