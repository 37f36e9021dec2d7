package parts

import (
	"encoding/json"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

// StreamEvent is one event from the provider's streaming protocol.
type StreamEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	DataType   string          `json:"dataType,omitempty"`
}

// Builder folds a stream of events into an ordered part list. It tolerates
// interruption at any point: Parts always returns a persistable snapshot, so
// a half-finished response survives a crash with whatever content had
// arrived.
type Builder struct {
	parts []Part
	// open tool calls by call ID, pointing into parts
	tools map[string]int
}

// NewBuilder returns an empty stream builder.
func NewBuilder() *Builder {
	return &Builder{tools: make(map[string]int)}
}

// Apply folds one event into the accumulated parts. Unknown event types are
// ignored; the stream may carry protocol events (finish, usage) that have no
// content.
func (b *Builder) Apply(ev StreamEvent) {
	switch ev.Type {
	case "text-start":
		b.parts = append(b.parts, Part{Kind: KindText})
	case "text-delta":
		b.appendDelta(KindText, ev.Delta)
	case "reasoning-start":
		b.parts = append(b.parts, Part{Kind: KindReasoning})
	case "reasoning-delta":
		b.appendDelta(KindReasoning, ev.Delta)
	case "tool-input-start":
		b.tools[ev.ToolCallID] = len(b.parts)
		b.parts = append(b.parts, Part{Kind: KindTool, Tool: &ToolInvocation{
			Name:   ev.ToolName,
			CallID: ev.ToolCallID,
		}})
	case "tool-input-available":
		if t := b.tool(ev); t != nil {
			t.Input = ev.Input
			t.State = store.ToolInputAvailable
		}
	case "tool-output-available":
		if t := b.tool(ev); t != nil {
			t.Output = ev.Output
			t.State = store.ToolOutputAvailable
		}
	case "tool-output-error":
		if t := b.tool(ev); t != nil {
			t.ErrorText = ev.ErrorText
			t.State = store.ToolOutputError
		}
	case "data":
		b.parts = append(b.parts, Part{Kind: KindData, Data: &DataBlob{
			Type:    ev.DataType,
			Payload: ev.Data,
		}})
	case "step-start":
		b.parts = append(b.parts, Part{Kind: KindStepStart})
	}
}

// Parts returns the current snapshot, dropping trailing empty text parts left
// by a start event with no deltas yet.
func (b *Builder) Parts() []Part {
	out := make([]Part, 0, len(b.parts))
	for _, p := range b.parts {
		if (p.Kind == KindText || p.Kind == KindReasoning) && p.Text == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// appendDelta extends the last part of the given kind, creating one if a
// delta arrives without a preceding start event.
func (b *Builder) appendDelta(kind Kind, delta string) {
	if n := len(b.parts); n > 0 && b.parts[n-1].Kind == kind {
		b.parts[n-1].Text += delta
		return
	}
	b.parts = append(b.parts, Part{Kind: kind, Text: delta})
}

func (b *Builder) tool(ev StreamEvent) *ToolInvocation {
	idx, ok := b.tools[ev.ToolCallID]
	if !ok {
		// output for a call we never saw start; create a closed record
		b.tools[ev.ToolCallID] = len(b.parts)
		b.parts = append(b.parts, Part{Kind: KindTool, Tool: &ToolInvocation{
			Name:   ev.ToolName,
			CallID: ev.ToolCallID,
		}})
		idx = len(b.parts) - 1
	}
	return b.parts[idx].Tool
}
