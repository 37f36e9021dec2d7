package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseResponse parses a raw LLM response into document candidates plus
// validation issues. Handles markdown code fences, the unified
// {"documents": [...]} shape, a bare array, and as a last resort regex
// repair of individual objects inside otherwise broken JSON.
func ParseResponse(raw string) ([]ExtractedDocument, []Issue, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, nil, nil
	}

	var wrapper struct {
		Documents []ExtractedDocument `json:"documents"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil && wrapper.Documents != nil {
		docs, issues := validate(wrapper.Documents)
		return docs, issues, nil
	}

	var arr []ExtractedDocument
	if err := json.Unmarshal([]byte(cleaned), &arr); err == nil {
		docs, issues := validate(arr)
		return docs, issues, nil
	}

	// Last resort: pull complete-looking objects out of the wreckage.
	repaired := repairDocuments(cleaned)
	if len(repaired) == 0 {
		return nil, nil, fmt.Errorf("extraction: failed to parse LLM response")
	}
	docs, issues := validate(repaired)
	return docs, issues, nil
}

// stripCodeFence removes a markdown code block wrapper (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// documentPattern matches a complete JSON object whose first key is "path".
var documentPattern = regexp.MustCompile(
	`\{\s*"path"\s*:\s*"[^"]+"\s*(?:,\s*"[^"]+"\s*:\s*(?:"(?:[^"\\]|\\.)*"|[\d.]+|\[[^\]]*\]|true|false|null))*\s*\}`,
)

func repairDocuments(raw string) []ExtractedDocument {
	matches := documentPattern.FindAllString(raw, -1)
	docs := make([]ExtractedDocument, 0, len(matches))
	for _, m := range matches {
		var d ExtractedDocument
		if err := json.Unmarshal([]byte(m), &d); err != nil {
			continue
		}
		docs = append(docs, d)
	}
	return docs
}
