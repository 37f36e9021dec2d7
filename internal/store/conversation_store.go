package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rivo/uniseg"
)

// titleMaxGraphemes is the display cap for derived conversation titles,
// counted in grapheme clusters so multi-byte characters are never split.
const titleMaxGraphemes = 50

const titleEllipsis = "..."

// =============================================================================
// Conversation CRUD
// =============================================================================

// CreateConversation inserts a new conversation.
func (s *SQLiteStore) CreateConversation(c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Status == "" {
		c.Status = ConversationActive
	}
	if c.StreamingStatus == "" {
		c.StreamingStatus = StreamingIdle
	}
	if c.LastActivityAt == 0 {
		c.LastActivityAt = c.CreatedAt
	}

	_, err := s.db.Exec(`
		INSERT INTO conversations (id, user_id, title, status, streaming_status,
			model_id, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Title, c.Status, c.StreamingStatus,
		c.ModelID, c.LastActivityAt, c.CreatedAt, c.UpdatedAt)

	return err
}

// GetConversation retrieves a conversation by ID. Returns nil when absent.
func (s *SQLiteStore) GetConversation(id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getConversation(id)
}

func (s *SQLiteStore) getConversation(id string) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(`
		SELECT id, user_id, title, status, streaming_status, model_id,
			last_activity_at, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.UserID, &c.Title, &c.Status, &c.StreamingStatus,
		&c.ModelID, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns a user's conversations, most recent activity first.
func (s *SQLiteStore) ListConversations(userID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, user_id, title, status, streaming_status, model_id,
			last_activity_at, created_at, updated_at
		FROM conversations WHERE user_id = ?
		ORDER BY last_activity_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

func scanConversations(rows *sql.Rows) ([]*Conversation, error) {
	var out []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Status,
			&c.StreamingStatus, &c.ModelID, &c.LastActivityAt,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and cascades to its messages and
// parts in one transaction.
func (s *SQLiteStore) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM message_parts WHERE message_id IN
			(SELECT id FROM messages WHERE conversation_id = ?)
	`, id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return err
	}

	return tx.Commit()
}

// SetConversationStatus transitions the user-visible status. It never touches
// streaming_status.
func (s *SQLiteStore) SetConversationStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// MarkAsBackground records that the user left while a response was in flight.
// This is a conversation-status transition only; the streaming state machine
// keeps running independently.
func (s *SQLiteStore) MarkAsBackground(id string) error {
	return s.SetConversationStatus(id, ConversationBackground)
}

// SetStreamingStatus transitions the streaming state machine
// (idle -> streaming -> completed | failed).
func (s *SQLiteStore) SetStreamingStatus(id, streamingStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE conversations SET streaming_status = ?, updated_at = ? WHERE id = ?
	`, streamingStatus, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// FindInterruptedConversations returns conversations stuck in the streaming
// state: a crash or closed window left them mid-response. Callers decide
// whether to resume or discard. Empty userID returns all users' rows (the
// recovery sweep at startup).
func (s *SQLiteStore) FindInterruptedConversations(userID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rows *sql.Rows
		err  error
	)
	if userID != "" {
		rows, err = s.db.Query(`
			SELECT id, user_id, title, status, streaming_status, model_id,
				last_activity_at, created_at, updated_at
			FROM conversations
			WHERE streaming_status = ? AND user_id = ?
			ORDER BY last_activity_at DESC
		`, StreamingActive, userID)
	} else {
		rows, err = s.db.Query(`
			SELECT id, user_id, title, status, streaming_status, model_id,
				last_activity_at, created_at, updated_at
			FROM conversations
			WHERE streaming_status = ?
			ORDER BY last_activity_at DESC
		`, StreamingActive)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanConversations(rows)
}

// EnsureTitle derives a title from source if the conversation has none yet.
// One-shot and non-destructive: an existing title is never replaced.
func (s *SQLiteStore) EnsureTitle(id, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var title string
	err := s.db.QueryRow(`SELECT title FROM conversations WHERE id = ?`, id).Scan(&title)
	if err == sql.ErrNoRows {
		return fmt.Errorf("conversation not found: %s", id)
	}
	if err != nil {
		return err
	}
	if title != "" {
		return nil
	}

	derived := TruncateTitle(strings.Join(strings.Fields(source), " "))
	if derived == "" {
		return nil
	}

	_, err = s.db.Exec(`
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?
	`, derived, time.Now().UnixMilli(), id)
	return err
}

// TruncateTitle caps s at titleMaxGraphemes grapheme clusters. Longer input
// keeps the first titleMaxGraphemes-3 clusters and appends the ellipsis, so
// the result is exactly the cap and no multi-byte cluster is split.
func TruncateTitle(s string) string {
	if uniseg.GraphemeClusterCount(s) <= titleMaxGraphemes {
		return s
	}

	keep := titleMaxGraphemes - len(titleEllipsis)
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for i := 0; i < keep && g.Next(); i++ {
		b.WriteString(g.Str())
	}
	b.WriteString(titleEllipsis)
	return b.String()
}

// =============================================================================
// Message CRUD
// =============================================================================

// SaveMessage inserts a message and its ordered parts atomically and bumps
// the conversation's last_activity_at.
func (s *SQLiteStore) SaveMessage(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertMessage(tx, msg); err != nil {
		return err
	}
	if err := touchConversation(tx, msg.ConversationID, msg.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateMessage replaces the message's entire part set atomically
// (delete-and-reinsert), so no stale part survives a content correction.
func (s *SQLiteStore) UpdateMessage(msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	res, err := tx.Exec(`
		UPDATE messages SET updated_at = ? WHERE id = ?
	`, now, msg.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message not found: %s", msg.ID)
	}

	if _, err := tx.Exec("DELETE FROM message_parts WHERE message_id = ?", msg.ID); err != nil {
		return err
	}
	if err := insertParts(tx, msg.ID, msg.Parts); err != nil {
		return err
	}
	if err := touchConversation(tx, msg.ConversationID, now); err != nil {
		return err
	}

	msg.UpdatedAt = now
	return tx.Commit()
}

// UpsertMessage saves or updates based on message id existence. Streaming
// write paths use this because they don't know whether the message already
// has a persisted row.
func (s *SQLiteStore) UpsertMessage(msg *Message) error {
	s.mu.RLock()
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM messages WHERE id = ? LIMIT 1`, msg.ID).Scan(&exists)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return s.SaveMessage(msg)
	}
	if err != nil {
		return err
	}
	return s.UpdateMessage(msg)
}

// GetMessage retrieves a message with its parts in index order.
// Returns nil when absent.
func (s *SQLiteStore) GetMessage(id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Message
	var updatedAt sql.NullInt64
	err := s.db.QueryRow(`
		SELECT id, conversation_id, role, created_at, updated_at
		FROM messages WHERE id = ?
	`, id).Scan(&m.ID, &m.ConversationID, &m.Role, &m.CreatedAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if updatedAt.Valid {
		m.UpdatedAt = updatedAt.Int64
	}

	m.Parts, err = s.loadParts(id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetConversationMessages returns all messages of a conversation in
// chronological order, each with its parts.
func (s *SQLiteStore) GetConversationMessages(conversationID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, created_at, updated_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		var updatedAt sql.NullInt64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.CreatedAt, &updatedAt); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			m.UpdatedAt = updatedAt.Int64
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range messages {
		if m.Parts, err = s.loadParts(m.ID); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

func (s *SQLiteStore) loadParts(messageID string) ([]MessagePart, error) {
	rows, err := s.db.Query(`
		SELECT message_id, part_index, kind, content, tool_name, tool_call_id,
			tool_state, tool_input, tool_output, error_text,
			file_url, filename, media_type, data_type, data
		FROM message_parts WHERE message_id = ?
		ORDER BY part_index ASC
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []MessagePart
	for rows.Next() {
		var p MessagePart
		if err := rows.Scan(&p.MessageID, &p.Index, &p.Kind, &p.Content,
			&p.ToolName, &p.ToolCallID, &p.ToolState, &p.ToolInput,
			&p.ToolOutput, &p.ErrorText, &p.FileURL, &p.Filename,
			&p.MediaType, &p.DataType, &p.Data); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func insertMessage(tx *sql.Tx, msg *Message) error {
	_, err := tx.Exec(`
		INSERT INTO messages (id, conversation_id, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return err
	}
	return insertParts(tx, msg.ID, msg.Parts)
}

func insertParts(tx *sql.Tx, messageID string, parts []MessagePart) error {
	for i, p := range parts {
		_, err := tx.Exec(`
			INSERT INTO message_parts (message_id, part_index, kind, content,
				tool_name, tool_call_id, tool_state, tool_input, tool_output,
				error_text, file_url, filename, media_type, data_type, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, messageID, i, p.Kind, p.Content,
			p.ToolName, p.ToolCallID, p.ToolState, p.ToolInput, p.ToolOutput,
			p.ErrorText, p.FileURL, p.Filename, p.MediaType, p.DataType, p.Data)
		if err != nil {
			return fmt.Errorf("insert part %d: %w", i, err)
		}
	}
	return nil
}

func touchConversation(tx *sql.Tx, conversationID string, at int64) error {
	if at == 0 {
		at = time.Now().UnixMilli()
	}
	_, err := tx.Exec(`
		UPDATE conversations SET last_activity_at = ?, updated_at = ? WHERE id = ?
	`, at, at, conversationID)
	return err
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("conversation not found: %s", id)
	}
	return nil
}
