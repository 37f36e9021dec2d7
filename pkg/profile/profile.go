// Package profile maintains the fixed set of well-known profile documents per
// owner (identity, preferences, goals, character) plus the open-ended people
// collection, and compiles them into the Markdown block injected into the
// system prompt.
package profile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

// Fixed document paths. People live as individual documents under PathPeople.
const (
	PathIdentity    = "profile.identity"
	PathPreferences = "profile.preferences"
	PathGoals       = "profile.goals"
	PathCharacter   = "profile.character"
	PathPeople      = "profile.people"
)

// section describes one well-known profile document: its path, display
// heading, and the seed content written at initialization. Order here is the
// compilation order.
type section struct {
	path    string
	heading string
	seed    string
}

var sections = []section{
	{PathIdentity, "## Identity", "[Your name]\n[Where you live, what you do]"},
	{PathPreferences, "## Interaction Preferences", "[How you like to communicate]"},
	{PathGoals, "## Goals", "[What you are working toward]"},
	{PathCharacter, "## Character", "[Values and traits that matter to you]"},
}

// placeholderPattern matches unfilled template markers like "[Your name]".
var placeholderPattern = regexp.MustCompile(`\[[^\[\]]*\]`)

// Store is the slice of the document store the profile service needs.
type Store interface {
	CreateDocument(doc *store.KnowledgeDocument) error
	UpsertDocumentByPath(doc *store.KnowledgeDocument) (created bool, err error)
	GetDocumentByPath(userID, path string) (*store.KnowledgeDocument, error)
	ListDocumentsByPrefix(userID, pathPrefix string) ([]*store.KnowledgeDocument, error)
}

type Service struct {
	store Store
	log   zerolog.Logger
}

func NewService(st Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log}
}

// Initialize creates any missing profile section documents with seed content.
// Idempotent: existing sections are left untouched. Returns whether anything
// was created.
func (s *Service) Initialize(userID string) (created bool, err error) {
	for _, sec := range sections {
		existing, err := s.store.GetDocumentByPath(userID, sec.path)
		if err != nil {
			return created, fmt.Errorf("profile: init %s: %w", sec.path, err)
		}
		if existing != nil {
			continue
		}
		doc := &store.KnowledgeDocument{
			ID:         uuid.NewString(),
			UserID:     userID,
			Path:       sec.path,
			Name:       strings.TrimPrefix(sec.heading, "## "),
			Content:    sec.seed,
			SourceType: store.SourceSeed,
			Editable:   true,
		}
		if err := s.store.CreateDocument(doc); err != nil {
			return created, fmt.Errorf("profile: init %s: %w", sec.path, err)
		}
		created = true
	}
	return created, nil
}

// UpdateSection replaces a section's content, creating the document if the
// profile was never initialized. Any write through here is real user data, so
// the source type flips from seed to manual.
func (s *Service) UpdateSection(userID, path, content string) error {
	sec := sectionByPath(path)
	if sec == nil {
		return fmt.Errorf("profile: unknown section %q", path)
	}
	doc := &store.KnowledgeDocument{
		ID:         uuid.NewString(),
		UserID:     userID,
		Path:       sec.path,
		Name:       strings.TrimPrefix(sec.heading, "## "),
		Content:    content,
		SourceType: store.SourceManual,
		Editable:   true,
	}
	if _, err := s.store.UpsertDocumentByPath(doc); err != nil {
		return fmt.Errorf("profile: update %s: %w", path, err)
	}
	return nil
}

// IsPopulated reports whether the profile carries real data: the identity
// section must exist, be non-empty, and contain no unfilled bracketed
// template markers.
func (s *Service) IsPopulated(userID string) (bool, error) {
	doc, err := s.store.GetDocumentByPath(userID, PathIdentity)
	if err != nil {
		return false, fmt.Errorf("profile: populated check: %w", err)
	}
	if doc == nil {
		return false, nil
	}
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return false, nil
	}
	return !placeholderPattern.MatchString(content), nil
}

// AddPerson upserts one person document keyed by the slug of their name.
// Adding a person whose slug already exists replaces that document.
func (s *Service) AddPerson(userID, name, content string) (string, error) {
	slug := Slugify(name)
	if slug == "" {
		return "", fmt.Errorf("profile: person name %q yields empty slug", name)
	}
	doc := &store.KnowledgeDocument{
		ID:         uuid.NewString(),
		UserID:     userID,
		Path:       PathPeople + "." + slug,
		Name:       name,
		Content:    content,
		SourceType: store.SourceManual,
		Editable:   true,
	}
	if _, err := s.store.UpsertDocumentByPath(doc); err != nil {
		return "", fmt.Errorf("profile: add person %s: %w", slug, err)
	}
	return slug, nil
}

// Slugify normalizes a person's name to its document key: lowercased, runs of
// non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func sectionByPath(path string) *section {
	for i := range sections {
		if sections[i].path == path {
			return &sections[i]
		}
	}
	return nil
}
