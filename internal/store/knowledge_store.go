package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrPathOccupied is returned when a document move targets a path that
// already holds a document for the same owner.
var ErrPathOccupied = fmt.Errorf("destination path already occupied")

// ErrDocumentNotFound is returned by operations addressing a missing document.
var ErrDocumentNotFound = fmt.Errorf("document not found")

const knowledgeColumns = `id, user_id, path, name, content, description, summary,
	source_type, source_id, tags, prompt_label, prompt_hint, prompt_order,
	always_include, editable, created_at, updated_at`

// =============================================================================
// Knowledge document CRUD
// =============================================================================

// CreateDocument inserts a new knowledge document. Fails if the owner already
// has a document at the same path.
func (s *SQLiteStore) CreateDocument(doc *KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertDocument(doc)
}

func (s *SQLiteStore) insertDocument(doc *KnowledgeDocument) error {
	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO knowledge_documents (`+knowledgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.UserID, doc.Path, doc.Name, doc.Content, doc.Description,
		doc.Summary, doc.SourceType, doc.SourceID, string(tags),
		doc.PromptLabel, doc.PromptHint, doc.PromptOrder,
		boolToInt(doc.AlwaysInclude), boolToInt(doc.Editable),
		doc.CreatedAt, doc.UpdatedAt)

	return err
}

// UpdateDocument updates a document in place, addressed by ID. The path is
// not changed here; use MoveDocument for renames.
func (s *SQLiteStore) UpdateDocument(doc *KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	doc.UpdatedAt = time.Now().UnixMilli()
	res, err := s.db.Exec(`
		UPDATE knowledge_documents SET
			name = ?, content = ?, description = ?, summary = ?,
			source_type = ?, source_id = ?, tags = ?,
			prompt_label = ?, prompt_hint = ?, prompt_order = ?,
			always_include = ?, editable = ?, updated_at = ?
		WHERE id = ?
	`, doc.Name, doc.Content, doc.Description, doc.Summary,
		doc.SourceType, doc.SourceID, string(tags),
		doc.PromptLabel, doc.PromptHint, doc.PromptOrder,
		boolToInt(doc.AlwaysInclude), boolToInt(doc.Editable), doc.UpdatedAt,
		doc.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, doc.ID)
	}
	return nil
}

// UpsertDocumentByPath creates the document if the owner has nothing at its
// path, otherwise replaces the existing row's content and metadata in place,
// keeping the original ID and created_at. Returns whether a row was created.
func (s *SQLiteStore) UpsertDocumentByPath(doc *KnowledgeDocument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getDocumentByPath(doc.UserID, doc.Path)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, s.insertDocument(doc)
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}

	doc.ID = existing.ID
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now().UnixMilli()

	_, err = s.db.Exec(`
		UPDATE knowledge_documents SET
			name = ?, content = ?, description = ?, summary = ?,
			source_type = ?, source_id = ?, tags = ?,
			prompt_label = ?, prompt_hint = ?, prompt_order = ?,
			always_include = ?, editable = ?, updated_at = ?
		WHERE id = ?
	`, doc.Name, doc.Content, doc.Description, doc.Summary,
		doc.SourceType, doc.SourceID, string(tags),
		doc.PromptLabel, doc.PromptHint, doc.PromptOrder,
		boolToInt(doc.AlwaysInclude), boolToInt(doc.Editable), doc.UpdatedAt,
		doc.ID)

	return false, err
}

// GetDocument retrieves a document by ID. Returns nil when absent.
func (s *SQLiteStore) GetDocument(id string) (*KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT `+knowledgeColumns+` FROM knowledge_documents WHERE id = ?
	`, id)
	return scanDocumentRow(row)
}

// GetDocumentByPath retrieves an owner's document at an exact path.
// Returns nil when absent.
func (s *SQLiteStore) GetDocumentByPath(userID, path string) (*KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getDocumentByPath(userID, path)
}

func (s *SQLiteStore) getDocumentByPath(userID, path string) (*KnowledgeDocument, error) {
	row := s.db.QueryRow(`
		SELECT `+knowledgeColumns+` FROM knowledge_documents
		WHERE user_id = ? AND path = ?
	`, userID, path)
	return scanDocumentRow(row)
}

// ListDocumentsByPrefix returns an owner's documents at or under a
// dot-segmented path prefix, ordered by prompt_order then path. Empty prefix
// lists everything the owner has.
func (s *SQLiteStore) ListDocumentsByPrefix(userID, pathPrefix string) ([]*KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if pathPrefix == "" {
		rows, err = s.db.Query(`
			SELECT `+knowledgeColumns+` FROM knowledge_documents
			WHERE user_id = ?
			ORDER BY prompt_order ASC, path ASC
		`, userID)
	} else {
		rows, err = s.db.Query(`
			SELECT `+knowledgeColumns+` FROM knowledge_documents
			WHERE user_id = ? AND (path = ? OR path LIKE ? ESCAPE '\')
			ORDER BY prompt_order ASC, path ASC
		`, userID, pathPrefix, escapeLike(pathPrefix)+".%")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// MoveDocument renames a document's path. Fails with ErrPathOccupied when the
// destination already holds a document for the same owner, and with
// ErrDocumentNotFound when the source is absent.
func (s *SQLiteStore) MoveDocument(userID, fromPath, toPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var occupied int
	err = tx.QueryRow(`
		SELECT 1 FROM knowledge_documents WHERE user_id = ? AND path = ? LIMIT 1
	`, userID, toPath).Scan(&occupied)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrPathOccupied, toPath)
	}
	if err != sql.ErrNoRows {
		return err
	}

	res, err := tx.Exec(`
		UPDATE knowledge_documents
		SET path = ?, updated_at = ?
		WHERE user_id = ? AND path = ?
	`, toPath, time.Now().UnixMilli(), userID, fromPath)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, fromPath)
	}

	return tx.Commit()
}

// DeleteDocument removes a document by ID.
func (s *SQLiteStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM knowledge_documents WHERE id = ?", id)
	return err
}

// =============================================================================
// Search
// =============================================================================

// SearchByEntities matches document path and name case-insensitively against
// each entity string, scoped to the owner. Results keep entity order first,
// then path order, deduplicated across entities.
func (s *SQLiteStore) SearchByEntities(userID string, entities []string, limit int) ([]*KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(entities) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []*KnowledgeDocument

	for _, entity := range entities {
		entity = strings.TrimSpace(entity)
		if entity == "" {
			continue
		}
		pattern := "%" + escapeLike(strings.ToLower(entity)) + "%"

		rows, err := s.db.Query(`
			SELECT `+knowledgeColumns+` FROM knowledge_documents
			WHERE user_id = ?
			  AND (LOWER(path) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\')
			ORDER BY path ASC
		`, userID, pattern, pattern)
		if err != nil {
			return nil, err
		}

		docs, err := scanDocuments(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		for _, doc := range docs {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			out = append(out, doc)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}

	return out, nil
}

// SearchFullText runs an FTS5 MATCH over name/content/description, scoped to
// the owner, ranked by bm25. The returned score is the negated bm25 value so
// higher means more relevant. The match string must already be sanitized
// (quoted tokens); callers build it with retrieval.BuildMatchQuery.
func (s *SQLiteStore) SearchFullText(userID, query string, limit int) ([]ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT d.id, d.user_id, d.path, d.name, d.content, d.description,
			d.summary, d.source_type, d.source_id, d.tags,
			d.prompt_label, d.prompt_hint, d.prompt_order,
			d.always_include, d.editable, d.created_at, d.updated_at,
			bm25(knowledge_fts) AS score
		FROM knowledge_fts
		JOIN knowledge_documents d ON d.rowid = knowledge_fts.rowid
		WHERE knowledge_fts MATCH ? AND d.user_id = ?
		ORDER BY score ASC
		LIMIT ?
	`, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredDocument
	for rows.Next() {
		var (
			doc                     KnowledgeDocument
			tagsJSON                string
			alwaysInclude, editable int
			bm25                    float64
		)
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Path, &doc.Name,
			&doc.Content, &doc.Description, &doc.Summary,
			&doc.SourceType, &doc.SourceID, &tagsJSON,
			&doc.PromptLabel, &doc.PromptHint, &doc.PromptOrder,
			&alwaysInclude, &editable, &doc.CreatedAt, &doc.UpdatedAt,
			&bm25); err != nil {
			return nil, err
		}
		doc.AlwaysInclude = alwaysInclude != 0
		doc.Editable = editable != 0
		decodeTags(tagsJSON, &doc)

		out = append(out, ScoredDocument{Doc: &doc, Score: -bm25})
	}
	return out, rows.Err()
}

// =============================================================================
// Scan helpers
// =============================================================================

type docScanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc docScanner) (*KnowledgeDocument, error) {
	var (
		doc                     KnowledgeDocument
		tagsJSON                string
		alwaysInclude, editable int
	)
	err := sc.Scan(&doc.ID, &doc.UserID, &doc.Path, &doc.Name, &doc.Content,
		&doc.Description, &doc.Summary, &doc.SourceType, &doc.SourceID,
		&tagsJSON, &doc.PromptLabel, &doc.PromptHint, &doc.PromptOrder,
		&alwaysInclude, &editable, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.AlwaysInclude = alwaysInclude != 0
	doc.Editable = editable != 0
	decodeTags(tagsJSON, &doc)
	return &doc, nil
}

func scanDocumentRow(row *sql.Row) (*KnowledgeDocument, error) {
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func scanDocuments(rows *sql.Rows) ([]*KnowledgeDocument, error) {
	var out []*KnowledgeDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func decodeTags(tagsJSON string, doc *KnowledgeDocument) {
	if tagsJSON == "" || tagsJSON == "null" {
		doc.Tags = nil
		return
	}
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		doc.Tags = nil
	}
}

// escapeLike escapes LIKE wildcards so entity strings match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
