package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
	"github.com/carmentacollective/carmenta-sub005/pkg/llm"
)

func TestParseResponseWrapper(t *testing.T) {
	raw := `{"documents": [{"path": "work.acme", "name": "Acme", "content": "Client since 2024."}]}`
	docs, issues, err := ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Errorf("issues = %v", issues)
	}
	if len(docs) != 1 || docs[0].Path != "work.acme" {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestParseResponseStripsCodeFence(t *testing.T) {
	raw := "```json\n[{\"path\": \"notes.a\", \"name\": \"A\", \"content\": \"x\"}]\n```"
	docs, _, err := ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs = %+v", docs)
	}
}

func TestParseResponseRepairsMalformedJSON(t *testing.T) {
	raw := `Here are the documents I found:
{"path": "work.acme", "name": "Acme", "content": "Client since 2024."},
{"path": "people.jane", "name": "Jane", "content": "Prefers email."}
trailing garbage`
	docs, _, err := ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("repaired %d docs, want 2: %+v", len(docs), docs)
	}
}

func TestParseResponseUnparseable(t *testing.T) {
	_, _, err := ParseResponse("I couldn't find anything worth saving, sorry!")
	if err == nil {
		t.Fatal("want error for unparseable response")
	}
}

func TestParseResponseEmpty(t *testing.T) {
	docs, issues, err := ParseResponse("")
	if err != nil || len(docs) != 0 || len(issues) != 0 {
		t.Fatalf("got %v %v %v", docs, issues, err)
	}
}

func TestValidationIssues(t *testing.T) {
	raw := `{"documents": [
		{"path": "", "name": "A", "content": "x"},
		{"path": "bad path!", "name": "B", "content": "x"},
		{"path": "ok.doc", "name": "", "content": "x"},
		{"path": "ok.doc2", "name": "D", "content": ""},
		{"path": "good.doc", "name": "Good", "content": "kept"}
	]}`
	docs, issues, err := ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Path != "good.doc" {
		t.Fatalf("docs = %+v", docs)
	}
	if len(issues) != 4 {
		t.Fatalf("issues = %v", issues)
	}
	for _, is := range issues {
		if is.Message == "" {
			t.Errorf("issue %v lacks a message", is)
		}
	}
}

func TestValidatePath(t *testing.T) {
	for _, ok := range []string{"a", "work.projects.acme-rollout", "a_b.c-1"} {
		if err := ValidatePath(ok); err != nil {
			t.Errorf("ValidatePath(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", ".", "a..b", "a.", "a b", "a/b", "café.notes"} {
		if err := ValidatePath(bad); err == nil {
			t.Errorf("ValidatePath(%q) = nil, want error", bad)
		}
	}
}

type stubClient struct {
	response string
}

func (s *stubClient) Complete(ctx context.Context, messages []llm.Message) (*llm.CompletionResult, error) {
	return &llm.CompletionResult{Content: &s.response}, nil
}

func (s *stubClient) CompleteWithTools(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.CompletionResult, error) {
	return s.Complete(ctx, messages)
}

func TestExtractFromConversationPersists(t *testing.T) {
	st, err := store.NewSQLiteStore()
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	client := &stubClient{response: `{"documents": [{"path": "work.acme", "name": "Acme", "content": "Client since 2024."}]}`}
	svc := NewService(client, st, zerolog.Nop())

	report, err := svc.ExtractFromConversation(context.Background(), "u1", "conv-1", []Turn{
		{Role: "user", Text: "Acme signed, they've been a client since 2024."},
		{Role: "assistant", Text: "Noted."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 1 || report.Updated != 0 {
		t.Fatalf("report = %+v", report)
	}

	doc, err := st.GetDocumentByPath("u1", "work.acme")
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil || doc.SourceType != store.SourceConversationExtraction || doc.SourceID != "conv-1" {
		t.Fatalf("doc = %+v", doc)
	}

	// second run upserts by path rather than duplicating
	report, err = svc.ExtractFromConversation(context.Background(), "u1", "conv-1", []Turn{{Role: "user", Text: "again"}})
	if err != nil {
		t.Fatal(err)
	}
	if report.Created != 0 || report.Updated != 1 {
		t.Fatalf("second report = %+v", report)
	}
}

func TestBuildPromptTruncatesOldTurns(t *testing.T) {
	long := strings.Repeat("x", 9000)
	turns := []Turn{
		{Role: "user", Text: long},
		{Role: "assistant", Text: long},
		{Role: "user", Text: long},
		{Role: "user", Text: "keep me"},
	}
	_, user := BuildPrompt(turns)
	if len(user) > maxTranscriptChars+100 {
		t.Errorf("prompt len = %d", len(user))
	}
	if !strings.Contains(user, "keep me") {
		t.Error("newest turn dropped")
	}
}
