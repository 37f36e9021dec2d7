// SQLite store setup. Uses ncruces/go-sqlite3/driver which provides a
// database/sql interface; the sqlite-vec build of the driver is registered so
// the same handle can serve vector extensions later without a second driver.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is the SQLite-backed data store.
// Thread-safe; writes are serialized through the mutex.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines all tables for the unified data layer.
// Referential integrity is managed at the application level (deletes cascade
// inside transactions), matching the single-writer usage pattern.
const schema = `
-- Users (ownership anchor; auth lives outside this core)
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

-- Conversations
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    streaming_status TEXT NOT NULL DEFAULT 'idle',
    model_id TEXT NOT NULL DEFAULT '',
    last_activity_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
CREATE INDEX IF NOT EXISTS idx_conversations_streaming ON conversations(streaming_status)
    WHERE streaming_status = 'streaming';

-- Messages
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);

-- Message parts: ordered union rows. part_index is the authoritative order.
CREATE TABLE IF NOT EXISTS message_parts (
    message_id TEXT NOT NULL,
    part_index INTEGER NOT NULL,
    kind TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    tool_name TEXT NOT NULL DEFAULT '',
    tool_call_id TEXT NOT NULL DEFAULT '',
    tool_state TEXT NOT NULL DEFAULT '',
    tool_input TEXT NOT NULL DEFAULT '',
    tool_output TEXT NOT NULL DEFAULT '',
    error_text TEXT NOT NULL DEFAULT '',
    file_url TEXT NOT NULL DEFAULT '',
    filename TEXT NOT NULL DEFAULT '',
    media_type TEXT NOT NULL DEFAULT '',
    data_type TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (message_id, part_index)
);

-- Knowledge documents: dot-segmented path unique per owner
CREATE TABLE IF NOT EXISTS knowledge_documents (
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    path TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    source_type TEXT NOT NULL DEFAULT 'manual',
    source_id TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    prompt_label TEXT NOT NULL DEFAULT '',
    prompt_hint TEXT NOT NULL DEFAULT '',
    prompt_order INTEGER NOT NULL DEFAULT 0,
    always_include INTEGER NOT NULL DEFAULT 0,
    editable INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, path)
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON knowledge_documents(user_id);

-- Full-text index over name/content/description, kept in sync by triggers.
CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
    name, content, description,
    content='knowledge_documents',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS knowledge_ai AFTER INSERT ON knowledge_documents BEGIN
    INSERT INTO knowledge_fts(rowid, name, content, description)
    VALUES (new.rowid, new.name, new.content, new.description);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_ad AFTER DELETE ON knowledge_documents BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, name, content, description)
    VALUES ('delete', old.rowid, old.name, old.content, old.description);
END;

CREATE TRIGGER IF NOT EXISTS knowledge_au AFTER UPDATE ON knowledge_documents BEGIN
    INSERT INTO knowledge_fts(knowledge_fts, rowid, name, content, description)
    VALUES ('delete', old.rowid, old.name, old.content, old.description);
    INSERT INTO knowledge_fts(rowid, name, content, description)
    VALUES (new.rowid, new.name, new.content, new.description);
END;

-- Service accounts (OAuth/API-key integrations)
CREATE TABLE IF NOT EXISTS service_accounts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    service TEXT NOT NULL,
    account_label TEXT NOT NULL DEFAULT '',
    api_key TEXT NOT NULL DEFAULT '',
    access_token TEXT NOT NULL DEFAULT '',
    refresh_token TEXT NOT NULL DEFAULT '',
    is_default INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'active',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_user_service ON service_accounts(user_id, service);

-- Notifications
CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    read_at INTEGER,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id)
    WHERE read_at IS NULL;
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// User CRUD
// =============================================================================

// UpsertUser inserts or updates a user row.
func (s *SQLiteStore) UpsertUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO users (id, email, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name
	`, u.ID, u.Email, u.Name, u.CreatedAt)

	return err
}

// GetUser retrieves a user by ID. Returns nil when absent.
func (s *SQLiteStore) GetUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	err := s.db.QueryRow(`
		SELECT id, email, name, created_at FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// =============================================================================
// Helpers
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
