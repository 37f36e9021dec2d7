// Package parts models chat message content as a closed tagged union and maps
// it losslessly between the provider wire format and storage rows.
//
// Wire part types are string-discriminated ("text", "reasoning", "file",
// "tool-<name>", "data-<type>", "step-start"). That prefix parsing happens
// exactly once, here; everything downstream switches on Kind.
package parts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

// Kind discriminates the part union.
type Kind int

const (
	KindText Kind = iota
	KindReasoning
	KindFile
	KindTool
	KindData
	KindStepStart
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindReasoning:
		return "reasoning"
	case KindFile:
		return "file"
	case KindTool:
		return "tool"
	case KindData:
		return "data"
	case KindStepStart:
		return "step-start"
	default:
		return "unknown"
	}
}

// Part is one atomic unit of message content. Exactly one payload field is
// meaningful for a given Kind; WireType preserves the original discriminant
// for unknown kinds so nothing is silently dropped.
type Part struct {
	Kind     Kind
	Text     string          // KindText, KindReasoning
	Tool     *ToolInvocation // KindTool
	File     *FileRef        // KindFile
	Data     *DataBlob       // KindData
	WireType string          // original wire type (set for KindUnknown)
}

// ToolInvocation is a tool call moving through its state machine.
type ToolInvocation struct {
	Name      string
	CallID    string
	State     string // store.ToolInputAvailable | ToolOutputAvailable | ToolOutputError
	Input     json.RawMessage
	Output    json.RawMessage
	ErrorText string
}

// FileRef points at an uploaded file.
type FileRef struct {
	URL       string
	Filename  string
	MediaType string
}

// DataBlob is a structured payload with an application-defined type.
type DataBlob struct {
	Type    string
	Payload json.RawMessage
}

// WirePart is the provider/UI JSON representation of a part.
type WirePart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	State      string          `json:"state,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
	URL        string          `json:"url,omitempty"`
	Filename   string          `json:"filename,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// FromWire converts a wire part into the closed union. Unrecognized types
// become KindUnknown carrying the original discriminant; they surface as a
// visible placeholder rather than vanishing.
func FromWire(w WirePart) Part {
	switch {
	case w.Type == "text":
		return Part{Kind: KindText, Text: w.Text}
	case w.Type == "reasoning":
		return Part{Kind: KindReasoning, Text: w.Text}
	case w.Type == "file":
		return Part{Kind: KindFile, File: &FileRef{
			URL:       w.URL,
			Filename:  w.Filename,
			MediaType: w.MediaType,
		}}
	case strings.HasPrefix(w.Type, "tool-"):
		return Part{Kind: KindTool, Tool: &ToolInvocation{
			Name:      strings.TrimPrefix(w.Type, "tool-"),
			CallID:    w.ToolCallID,
			State:     w.State,
			Input:     w.Input,
			Output:    w.Output,
			ErrorText: w.ErrorText,
		}}
	case strings.HasPrefix(w.Type, "data-"):
		return Part{Kind: KindData, Data: &DataBlob{
			Type:    strings.TrimPrefix(w.Type, "data-"),
			Payload: w.Data,
		}}
	case w.Type == "step-start":
		return Part{Kind: KindStepStart}
	default:
		return Part{Kind: KindUnknown, WireType: w.Type}
	}
}

// ToWire converts a union part back to the wire representation. Total for
// every Kind; unknown parts render as a placeholder text part so the UI shows
// that something was there.
func (p Part) ToWire() WirePart {
	switch p.Kind {
	case KindText:
		return WirePart{Type: "text", Text: p.Text}
	case KindReasoning:
		return WirePart{Type: "reasoning", Text: p.Text}
	case KindFile:
		f := p.File
		if f == nil {
			f = &FileRef{}
		}
		return WirePart{Type: "file", URL: f.URL, Filename: f.Filename, MediaType: f.MediaType}
	case KindTool:
		t := p.Tool
		if t == nil {
			t = &ToolInvocation{}
		}
		return WirePart{
			Type:       "tool-" + t.Name,
			State:      t.State,
			ToolCallID: t.CallID,
			Input:      t.Input,
			Output:     t.Output,
			ErrorText:  t.ErrorText,
		}
	case KindData:
		d := p.Data
		if d == nil {
			d = &DataBlob{}
		}
		return WirePart{Type: "data-" + d.Type, Data: d.Payload}
	case KindStepStart:
		return WirePart{Type: "step-start"}
	default:
		return WirePart{Type: "text", Text: Placeholder(p.WireType)}
	}
}

// Placeholder is the visible stand-in for content of an unrecognized kind.
func Placeholder(wireType string) string {
	if wireType == "" {
		wireType = "unknown"
	}
	return fmt.Sprintf("[Unsupported content: %s]", wireType)
}

// =============================================================================
// Storage mapping
// =============================================================================

// ToDB maps a part to its storage row. Total and lossless for every known
// kind; unknown kinds are stored as their placeholder text so they remain
// visible after a round trip.
func ToDB(p Part, messageID string, index int) store.MessagePart {
	row := store.MessagePart{MessageID: messageID, Index: index}

	switch p.Kind {
	case KindText:
		row.Kind = store.PartText
		row.Content = p.Text
	case KindReasoning:
		row.Kind = store.PartReasoning
		row.Content = p.Text
	case KindFile:
		row.Kind = store.PartFile
		if p.File != nil {
			row.FileURL = p.File.URL
			row.Filename = p.File.Filename
			row.MediaType = p.File.MediaType
		}
	case KindTool:
		row.Kind = store.PartToolCall
		if p.Tool != nil {
			row.ToolName = p.Tool.Name
			row.ToolCallID = p.Tool.CallID
			row.ToolState = p.Tool.State
			row.ToolInput = string(p.Tool.Input)
			row.ToolOutput = string(p.Tool.Output)
			row.ErrorText = p.Tool.ErrorText
		}
	case KindData:
		row.Kind = store.PartData
		if p.Data != nil {
			row.DataType = p.Data.Type
			row.Data = string(p.Data.Payload)
		}
	case KindStepStart:
		row.Kind = store.PartStepStart
	default:
		row.Kind = store.PartText
		row.Content = Placeholder(p.WireType)
	}

	return row
}

// FromDB maps a storage row back to a union part. Rows with an unrecognized
// stored kind (e.g. written by a newer version) become a visible placeholder
// text part instead of an error.
func FromDB(row store.MessagePart) Part {
	switch row.Kind {
	case store.PartText:
		return Part{Kind: KindText, Text: row.Content}
	case store.PartReasoning:
		return Part{Kind: KindReasoning, Text: row.Content}
	case store.PartFile:
		return Part{Kind: KindFile, File: &FileRef{
			URL:       row.FileURL,
			Filename:  row.Filename,
			MediaType: row.MediaType,
		}}
	case store.PartToolCall:
		return Part{Kind: KindTool, Tool: &ToolInvocation{
			Name:      row.ToolName,
			CallID:    row.ToolCallID,
			State:     row.ToolState,
			Input:     rawOrNil(row.ToolInput),
			Output:    rawOrNil(row.ToolOutput),
			ErrorText: row.ErrorText,
		}}
	case store.PartData:
		return Part{Kind: KindData, Data: &DataBlob{
			Type:    row.DataType,
			Payload: rawOrNil(row.Data),
		}}
	case store.PartStepStart:
		return Part{Kind: KindStepStart}
	default:
		return Part{Kind: KindText, Text: Placeholder(row.Kind)}
	}
}

// ToDBParts maps an ordered part list to storage rows.
func ToDBParts(messageID string, ps []Part) []store.MessagePart {
	rows := make([]store.MessagePart, 0, len(ps))
	for i, p := range ps {
		rows = append(rows, ToDB(p, messageID, i))
	}
	return rows
}

// FromDBParts maps storage rows back to an ordered part list.
func FromDBParts(rows []store.MessagePart) []Part {
	ps := make([]Part, 0, len(rows))
	for _, row := range rows {
		ps = append(ps, FromDB(row))
	}
	return ps
}

func rawOrNil(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}
