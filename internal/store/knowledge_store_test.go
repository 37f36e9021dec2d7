package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func mustCreateDoc(t *testing.T, s *SQLiteStore, userID, path, name, content string) *KnowledgeDocument {
	t.Helper()
	now := time.Now().UnixMilli()
	doc := &KnowledgeDocument{
		ID:         fmt.Sprintf("doc-%s-%s", userID, path),
		UserID:     userID,
		Path:       path,
		Name:       name,
		Content:    content,
		SourceType: SourceManual,
		Editable:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateDocument(doc); err != nil {
		t.Fatalf("failed to create document %s: %v", path, err)
	}
	return doc
}

func TestCreateDocumentPathUnique(t *testing.T) {
	s := newTestStore(t)
	mustCreateDoc(t, s, "u1", "people.ada", "Ada", "Mathematician.")

	dup := &KnowledgeDocument{
		ID:     "other-id",
		UserID: "u1",
		Path:   "people.ada",
		Name:   "Ada again",
	}
	if err := s.CreateDocument(dup); err == nil {
		t.Error("want error for duplicate path within one owner")
	}

	// same path for a different owner is fine
	dup.UserID = "u2"
	if err := s.CreateDocument(dup); err != nil {
		t.Errorf("cross-owner path collision: %v", err)
	}
}

func TestUpsertDocumentByPathKeepsIdentity(t *testing.T) {
	s := newTestStore(t)
	original := mustCreateDoc(t, s, "u1", "people.ada", "Ada", "First draft.")

	replacement := &KnowledgeDocument{
		ID:         "new-id",
		UserID:     "u1",
		Path:       "people.ada",
		Name:       "Ada Lovelace",
		Content:    "Second draft.",
		SourceType: SourceConversationExtraction,
		CreatedAt:  original.CreatedAt + 9999,
		UpdatedAt:  original.CreatedAt + 9999,
	}
	created, err := s.UpsertDocumentByPath(replacement)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created {
		t.Error("created = true, want update of existing row")
	}

	got, _ := s.GetDocumentByPath("u1", "people.ada")
	if got.ID != original.ID {
		t.Errorf("id = %s, want original %s", got.ID, original.ID)
	}
	if got.CreatedAt != original.CreatedAt {
		t.Errorf("created_at = %d, want original %d", got.CreatedAt, original.CreatedAt)
	}
	if got.Content != "Second draft." {
		t.Errorf("content = %q", got.Content)
	}

	fresh := &KnowledgeDocument{
		ID:     "fresh-id",
		UserID: "u1",
		Path:   "people.grace",
		Name:   "Grace",
	}
	created, err = s.UpsertDocumentByPath(fresh)
	if err != nil {
		t.Fatalf("upsert fresh: %v", err)
	}
	if !created {
		t.Error("created = false, want insert")
	}
}

func TestMoveDocument(t *testing.T) {
	s := newTestStore(t)
	mustCreateDoc(t, s, "u1", "notes.old", "Old", "Body.")
	mustCreateDoc(t, s, "u1", "notes.taken", "Taken", "Body.")

	if err := s.MoveDocument("u1", "notes.old", "notes.taken"); !errors.Is(err, ErrPathOccupied) {
		t.Errorf("move onto occupied path: %v, want ErrPathOccupied", err)
	}
	if err := s.MoveDocument("u1", "notes.missing", "notes.new"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("move missing source: %v, want ErrDocumentNotFound", err)
	}

	if err := s.MoveDocument("u1", "notes.old", "notes.renamed"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got, _ := s.GetDocumentByPath("u1", "notes.old"); got != nil {
		t.Error("source path still occupied after move")
	}
	got, _ := s.GetDocumentByPath("u1", "notes.renamed")
	if got == nil || got.Name != "Old" {
		t.Errorf("destination = %+v", got)
	}
}

func TestListDocumentsByPrefix(t *testing.T) {
	s := newTestStore(t)
	mustCreateDoc(t, s, "u1", "a", "A", "root")
	mustCreateDoc(t, s, "u1", "a.b", "AB", "child")
	mustCreateDoc(t, s, "u1", "ab", "ABFlat", "sibling prefix, not a child")
	mustCreateDoc(t, s, "u1", "z", "Z", "elsewhere")
	mustCreateDoc(t, s, "u2", "a.c", "AC", "other owner")

	docs, err := s.ListDocumentsByPrefix("u1", "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	if len(paths) != 2 || paths[0] != "a" || paths[1] != "a.b" {
		t.Errorf("prefix a = %v, want [a a.b]", paths)
	}

	all, err := s.ListDocumentsByPrefix("u1", "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("empty prefix returned %d docs, want all 4", len(all))
	}
}

func TestDeleteDocument(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDoc(t, s, "u1", "notes.gone", "Gone", "Body.")

	if err := s.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := s.GetDocument(doc.ID); got != nil {
		t.Error("document survived delete")
	}
}

// =============================================================================
// Search
// =============================================================================

func TestSearchByEntities(t *testing.T) {
	s := newTestStore(t)
	mustCreateDoc(t, s, "u1", "people.ada-lovelace", "Ada Lovelace", "Mathematician.")
	mustCreateDoc(t, s, "u1", "projects.analytical-engine", "Analytical Engine", "Ada's machine.")
	mustCreateDoc(t, s, "u2", "people.ada-lovelace", "Ada Lovelace", "Other owner's copy.")

	// case-insensitive, matched on name or path
	docs, err := s.SearchByEntities("u1", []string{"ADA LOVELACE"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 1 || docs[0].UserID != "u1" {
		t.Fatalf("got %d docs, want 1 scoped to u1", len(docs))
	}

	// entity order wins over path order, duplicates collapse
	docs, err = s.SearchByEntities("u1", []string{"engine", "ada lovelace", "Engine"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2 after dedup", len(docs))
	}
	if docs[0].Path != "projects.analytical-engine" || docs[1].Path != "people.ada-lovelace" {
		t.Errorf("order = [%s %s], want entity order", docs[0].Path, docs[1].Path)
	}

	// limit applies across entities
	docs, err = s.SearchByEntities("u1", []string{"engine", "ada lovelace"}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("limit ignored: got %d docs", len(docs))
	}
}

func TestSearchFullText(t *testing.T) {
	s := newTestStore(t)
	mustCreateDoc(t, s, "u1", "notes.sourdough", "Sourdough",
		"Sourdough starter feeding schedule. Feed the sourdough twice daily.")
	mustCreateDoc(t, s, "u1", "notes.travel", "Travel",
		"Lisbon trip planning. One mention of sourdough bakeries.")
	mustCreateDoc(t, s, "u2", "notes.sourdough", "Sourdough", "Other owner's sourdough.")

	results, err := s.SearchFullText("u1", `"sourdough"`, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 scoped to u1", len(results))
	}
	if results[0].Doc.Path != "notes.sourdough" {
		t.Errorf("best match = %s, want notes.sourdough", results[0].Doc.Path)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %f <= %f", results[0].Score, results[1].Score)
	}

	// blank query is a no-op, not an error
	results, err = s.SearchFullText("u1", "  ", 10)
	if err != nil {
		t.Fatalf("blank query: %v", err)
	}
	if results != nil {
		t.Errorf("blank query = %+v, want nil", results)
	}
}

func TestSearchFullTextTracksUpdates(t *testing.T) {
	s := newTestStore(t)
	doc := mustCreateDoc(t, s, "u1", "notes.topic", "Topic", "Nothing relevant here.")

	doc.Content = "All about quasars now."
	doc.UpdatedAt = time.Now().UnixMilli()
	if err := s.UpdateDocument(doc); err != nil {
		t.Fatalf("update: %v", err)
	}

	results, err := s.SearchFullText("u1", `"quasars"`, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("index missed the update: got %d results", len(results))
	}

	if err := s.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	results, err = s.SearchFullText("u1", `"quasars"`, 10)
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("index kept a deleted document")
	}
}
