package agent

import (
	"encoding/json"

	"github.com/carmentacollective/carmenta-sub005/pkg/llm"
)

// Definitions returns the tool schemas offered to the model.
func Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Type: "function",
			Function: llm.ToolFunctionSchema{
				Name:        "save_document",
				Description: "Create or update a knowledge document at a dot-separated path. Use for facts worth remembering across conversations.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"path": {"type": "string", "description": "Dot-separated location, e.g. work.projects.acme"},
						"name": {"type": "string", "description": "Short human title"},
						"content": {"type": "string", "description": "The knowledge itself"},
						"description": {"type": "string", "description": "Optional one-line description"}
					},
					"required": ["path", "name", "content"]
				}`),
			},
		},
		{
			Type: "function",
			Function: llm.ToolFunctionSchema{
				Name:        "get_document",
				Description: "Read the knowledge document at a dot-separated path.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"path": {"type": "string", "description": "Dot-separated location"}
					},
					"required": ["path"]
				}`),
			},
		},
	}
}
