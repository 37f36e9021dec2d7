// Package extraction turns LLM responses into knowledge documents: prompt
// construction, a parser tolerant of fenced and malformed JSON, field
// validation with human-readable failures, and persistence with
// conversation-extraction source metadata.
package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

// ExtractedDocument is one candidate document from a model response.
type ExtractedDocument struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Issue is a per-candidate validation failure. These are results, not errors:
// one bad candidate never aborts the batch.
type Issue struct {
	Index   int
	Field   string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("document %d: %s: %s", i.Index, i.Field, i.Message)
}

// pathPattern: dot-separated segments of letters, digits, hyphens and
// underscores. No empty segments, no other punctuation.
var pathPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)*$`)

// ValidatePath reports whether p is a legal document path.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("extraction: path is empty")
	}
	if !pathPattern.MatchString(p) {
		return fmt.Errorf("extraction: path %q contains invalid characters", p)
	}
	return nil
}

// validate splits candidates into acceptable documents and issues.
func validate(candidates []ExtractedDocument) ([]ExtractedDocument, []Issue) {
	var docs []ExtractedDocument
	var issues []Issue

	for i, c := range candidates {
		c.Path = strings.TrimSpace(c.Path)
		c.Name = strings.TrimSpace(c.Name)
		c.Content = strings.TrimSpace(c.Content)

		switch {
		case c.Path == "":
			issues = append(issues, Issue{Index: i, Field: "path", Message: "required field missing"})
		case !pathPattern.MatchString(c.Path):
			issues = append(issues, Issue{Index: i, Field: "path", Message: fmt.Sprintf("invalid characters in %q", c.Path)})
		case c.Name == "":
			issues = append(issues, Issue{Index: i, Field: "name", Message: "required field missing"})
		case c.Content == "":
			issues = append(issues, Issue{Index: i, Field: "content", Message: "required field missing"})
		default:
			docs = append(docs, c)
			continue
		}
	}
	return docs, issues
}
