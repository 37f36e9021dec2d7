package profile

import "strings"

// Compile assembles the populated profile sections, in their fixed order,
// plus all people documents into one Markdown block for the system prompt.
// Sections with empty trimmed content are omitted entirely; blocks are joined
// by exactly one blank line. Any storage failure degrades to "" because this
// output must never block a chat turn.
func (s *Service) Compile(userID string) string {
	var blocks []string

	for _, sec := range sections {
		doc, err := s.store.GetDocumentByPath(userID, sec.path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", sec.path).Msg("profile compile degraded to empty")
			return ""
		}
		if doc == nil {
			continue
		}
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		blocks = append(blocks, sec.heading+"\n\n"+content)
	}

	people, err := s.store.ListDocumentsByPrefix(userID, PathPeople)
	if err != nil {
		s.log.Warn().Err(err).Msg("profile compile degraded to empty")
		return ""
	}
	for _, p := range people {
		if p.Path == PathPeople {
			continue
		}
		content := strings.TrimSpace(p.Content)
		if content == "" {
			continue
		}
		slug := p.Path[strings.LastIndex(p.Path, ".")+1:]
		blocks = append(blocks, "### "+displayName(slug)+"\n\n"+content)
	}

	return strings.Join(blocks, "\n\n")
}

// displayName renders a person slug for its heading: hyphen-separated words
// capitalized and joined with spaces ("jane-doe" -> "Jane Doe").
func displayName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
