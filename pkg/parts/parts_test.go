package parts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

func TestFromWireKnownKinds(t *testing.T) {
	cases := []struct {
		wire WirePart
		kind Kind
	}{
		{WirePart{Type: "text", Text: "hello"}, KindText},
		{WirePart{Type: "reasoning", Text: "thinking"}, KindReasoning},
		{WirePart{Type: "file", URL: "https://x/y.png", Filename: "y.png", MediaType: "image/png"}, KindFile},
		{WirePart{Type: "tool-search", ToolCallID: "c1", State: store.ToolInputAvailable}, KindTool},
		{WirePart{Type: "data-weather", Data: json.RawMessage(`{"temp":20}`)}, KindData},
		{WirePart{Type: "step-start"}, KindStepStart},
	}
	for _, tc := range cases {
		got := FromWire(tc.wire)
		if got.Kind != tc.kind {
			t.Errorf("FromWire(%q): kind = %v, want %v", tc.wire.Type, got.Kind, tc.kind)
		}
	}
}

func TestToolNameParsedOnce(t *testing.T) {
	p := FromWire(WirePart{Type: "tool-get-weather-report", ToolCallID: "c9"})
	if p.Tool == nil || p.Tool.Name != "get-weather-report" {
		t.Fatalf("tool name = %+v, want get-weather-report", p.Tool)
	}
	w := p.ToWire()
	if w.Type != "tool-get-weather-report" {
		t.Errorf("round-trip wire type = %q", w.Type)
	}
}

func TestUnknownWireKindBecomesPlaceholder(t *testing.T) {
	p := FromWire(WirePart{Type: "source-url"})
	if p.Kind != KindUnknown || p.WireType != "source-url" {
		t.Fatalf("got %+v", p)
	}
	w := p.ToWire()
	if w.Type != "text" || !strings.Contains(w.Text, "source-url") {
		t.Errorf("placeholder = %+v, want visible text naming source-url", w)
	}
}

func TestDBRoundTripLossless(t *testing.T) {
	in := []Part{
		{Kind: KindText, Text: "answer"},
		{Kind: KindReasoning, Text: "chain"},
		{Kind: KindFile, File: &FileRef{URL: "u", Filename: "f", MediaType: "m"}},
		{Kind: KindTool, Tool: &ToolInvocation{
			Name:   "read_doc",
			CallID: "c2",
			State:  store.ToolOutputAvailable,
			Input:  json.RawMessage(`{"path":"work.projects"}`),
			Output: json.RawMessage(`{"content":"..."}`),
		}},
		{Kind: KindData, Data: &DataBlob{Type: "chart", Payload: json.RawMessage(`[1,2]`)}},
		{Kind: KindStepStart},
	}

	rows := ToDBParts("m1", in)
	for i, row := range rows {
		if row.MessageID != "m1" || row.Index != i {
			t.Fatalf("row %d addressing = %+v", i, row)
		}
	}

	out := FromDBParts(rows)
	if len(out) != len(in) {
		t.Fatalf("got %d parts, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Kind != in[i].Kind {
			t.Errorf("part %d kind = %v, want %v", i, out[i].Kind, in[i].Kind)
		}
	}
	if out[3].Tool.State != store.ToolOutputAvailable {
		t.Errorf("tool state = %q", out[3].Tool.State)
	}
	if string(out[3].Tool.Input) != `{"path":"work.projects"}` {
		t.Errorf("tool input = %s", out[3].Tool.Input)
	}
	if out[4].Data.Type != "chart" || string(out[4].Data.Payload) != "[1,2]" {
		t.Errorf("data part = %+v", out[4].Data)
	}
}

func TestUnknownDBKindBecomesPlaceholder(t *testing.T) {
	p := FromDB(store.MessagePart{Kind: "hologram"})
	if p.Kind != KindText || !strings.Contains(p.Text, "hologram") {
		t.Errorf("got %+v, want placeholder text", p)
	}
}

func TestBuilderAccumulatesTextAndTools(t *testing.T) {
	b := NewBuilder()
	b.Apply(StreamEvent{Type: "step-start"})
	b.Apply(StreamEvent{Type: "text-start"})
	b.Apply(StreamEvent{Type: "text-delta", Delta: "Hello, "})
	b.Apply(StreamEvent{Type: "text-delta", Delta: "world."})
	b.Apply(StreamEvent{Type: "tool-input-start", ToolName: "search", ToolCallID: "c1"})
	b.Apply(StreamEvent{Type: "tool-input-available", ToolCallID: "c1", Input: json.RawMessage(`{"q":"x"}`)})
	b.Apply(StreamEvent{Type: "tool-output-available", ToolCallID: "c1", Output: json.RawMessage(`{"hits":0}`)})

	ps := b.Parts()
	if len(ps) != 3 {
		t.Fatalf("got %d parts: %+v", len(ps), ps)
	}
	if ps[1].Text != "Hello, world." {
		t.Errorf("text = %q", ps[1].Text)
	}
	if ps[2].Tool.State != store.ToolOutputAvailable {
		t.Errorf("tool state = %q", ps[2].Tool.State)
	}
}

func TestBuilderSnapshotMidStream(t *testing.T) {
	b := NewBuilder()
	b.Apply(StreamEvent{Type: "text-start"})
	b.Apply(StreamEvent{Type: "text-delta", Delta: "partial answ"})
	b.Apply(StreamEvent{Type: "tool-input-start", ToolName: "search", ToolCallID: "c1"})

	// interrupted here: snapshot must still be persistable
	ps := b.Parts()
	if len(ps) != 2 {
		t.Fatalf("got %d parts", len(ps))
	}
	if ps[0].Text != "partial answ" {
		t.Errorf("text = %q", ps[0].Text)
	}
	if ps[1].Tool.State != "" {
		t.Errorf("open tool call state = %q, want empty", ps[1].Tool.State)
	}
}

func TestBuilderDropsEmptyStartedText(t *testing.T) {
	b := NewBuilder()
	b.Apply(StreamEvent{Type: "text-start"})
	if got := b.Parts(); len(got) != 0 {
		t.Errorf("got %d parts, want 0", len(got))
	}
}
