package retrieval

import (
	"fmt"
	"strings"
	"time"
)

// SerializeContext renders retrieved documents as the <retrieved-context>
// fragment injected into the prompt. Returns nil (not an empty string) when
// there is nothing to inject, so callers can distinguish "no context" from
// "empty context block".
func SerializeContext(docs []RetrievedDocument) *string {
	if len(docs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("<retrieved-context>\n")
	for _, d := range docs {
		writeDocument(&b, d)
	}
	b.WriteString("</retrieved-context>")

	out := b.String()
	return &out
}

func writeDocument(b *strings.Builder, d RetrievedDocument) {
	fmt.Fprintf(b, `  <document path="%s" relevance="%.2f" reason="%s" source-type="%s"`,
		escape(DisplayPath(d.Doc.Path)), d.Relevance, escape(d.Reason), escape(d.Doc.SourceType))
	if d.Doc.SourceID != "" {
		fmt.Fprintf(b, ` source-id="%s"`, escape(d.Doc.SourceID))
	}
	fmt.Fprintf(b, ` updated="%s">`, formatDate(d.Doc.UpdatedAt))
	b.WriteString("\n")

	if d.Doc.Summary != "" {
		fmt.Fprintf(b, "    <summary>%s</summary>\n", escape(d.Doc.Summary))
	}
	fmt.Fprintf(b, "    <content>%s</content>\n", escape(d.Doc.Content))
	b.WriteString("  </document>\n")
}

// DisplayPath maps a stored dot path to its slash form for display.
func DisplayPath(path string) string {
	return strings.ReplaceAll(path, ".", "/")
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// escape XML-escapes &, <, >, ' and " so the fragment stays well formed in
// both attribute and element positions. Newlines in document content pass
// through untouched.
func escape(s string) string {
	return xmlEscaper.Replace(s)
}

func formatDate(unixMilli int64) string {
	if unixMilli == 0 {
		return ""
	}
	return time.UnixMilli(unixMilli).UTC().Format("2006-01-02")
}
