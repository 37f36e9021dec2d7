package extraction

import (
	"fmt"
	"strings"
)

const systemPrompt = `You extract durable knowledge from conversations.
Given a transcript, identify facts worth remembering long-term: people, projects, preferences, decisions, commitments.

Respond with JSON only, in this shape:
{"documents": [{"path": "work.projects.acme", "name": "Acme Project", "content": "...", "description": "...", "tags": ["..."]}]}

Rules:
- "path" is dot-separated, lowercase, using only letters, digits, hyphens and underscores.
- "name" is a short human title.
- "content" is the fact itself, written to be useful months from now.
- Skip small talk, transient state, and anything already obvious from the path.
- Return {"documents": []} when nothing qualifies.`

// maxTranscriptChars bounds the prompt; older turns fall off the front.
const maxTranscriptChars = 24000

// BuildPrompt renders the system and user prompts for one transcript. Turns
// are "role: text" lines, oldest first.
func BuildPrompt(turns []Turn) (system, user string) {
	var b strings.Builder
	for _, t := range turns {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", t.Role, text)
	}

	transcript := b.String()
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[len(transcript)-maxTranscriptChars:]
		if i := strings.IndexByte(transcript, '\n'); i >= 0 {
			transcript = transcript[i+1:]
		}
	}

	return systemPrompt, "Transcript:\n\n" + transcript
}

// Turn is one transcript line.
type Turn struct {
	Role string
	Text string
}
