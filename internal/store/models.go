// Package store provides SQLite-backed persistence for the Carmenta core.
// This is the unified data layer behind conversations, knowledge documents,
// integrations and notifications.
package store

// Conversation status values (user-visible lifecycle).
const (
	ConversationActive     = "active"
	ConversationBackground = "background"
	ConversationArchived   = "archived"
)

// Streaming status values (assistant-response state machine, independent of
// the conversation status).
const (
	StreamingIdle      = "idle"
	StreamingActive    = "streaming"
	StreamingCompleted = "completed"
	StreamingFailed    = "failed"
)

// Knowledge document source types.
const (
	SourceManual                 = "manual"
	SourceConversationExtraction = "conversation_extraction"
	SourceSeed                   = "seed"
)

// User is the owner of conversations and knowledge documents. Authentication
// lives outside this core; rows here only anchor ownership.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

// Conversation is a chat session. Title is derived from the first user
// message; "" means no title has been set yet.
type Conversation struct {
	ID              string `json:"id"`
	UserID          string `json:"userId"`
	Title           string `json:"title,omitempty"`
	Status          string `json:"status"`
	StreamingStatus string `json:"streamingStatus"`
	ModelID         string `json:"modelId,omitempty"`
	LastActivityAt  int64  `json:"lastActivityAt"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// Message is one turn in a conversation. Parts are ordered by Index and are
// always written as a complete set.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Role           string        `json:"role"` // "user" | "assistant"
	Parts          []MessagePart `json:"parts"`
	CreatedAt      int64         `json:"createdAt"`
	UpdatedAt      int64         `json:"updatedAt,omitempty"`
}

// Message part kinds as stored.
const (
	PartText      = "text"
	PartReasoning = "reasoning"
	PartFile      = "file"
	PartToolCall  = "tool_call"
	PartData      = "data"
	PartStepStart = "step_start"
)

// Tool call states.
const (
	ToolInputAvailable  = "input-available"
	ToolOutputAvailable = "output-available"
	ToolOutputError     = "output-error"
)

// MessagePart is one storage row of a message's content. Which fields are
// populated depends on Kind; Index is the explicit ordering within the
// message, not implied by storage order.
type MessagePart struct {
	MessageID  string `json:"messageId"`
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Content    string `json:"content,omitempty"`    // text, reasoning
	ToolName   string `json:"toolName,omitempty"`   // tool_call
	ToolCallID string `json:"toolCallId,omitempty"` // tool_call
	ToolState  string `json:"toolState,omitempty"`  // tool_call
	ToolInput  string `json:"toolInput,omitempty"`  // tool_call, JSON
	ToolOutput string `json:"toolOutput,omitempty"` // tool_call, JSON
	ErrorText  string `json:"errorText,omitempty"`  // tool_call
	FileURL    string `json:"fileUrl,omitempty"`    // file
	Filename   string `json:"filename,omitempty"`   // file
	MediaType  string `json:"mediaType,omitempty"`  // file
	DataType   string `json:"dataType,omitempty"`   // data
	Data       string `json:"data,omitempty"`       // data, JSON
}

// KnowledgeDocument is one entry in a user's knowledge base. Path is
// dot-segmented (e.g. "profile.people.jane-doe") and unique per owner.
type KnowledgeDocument struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	SourceType  string   `json:"sourceType"`
	SourceID    string   `json:"sourceId,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Prompt-inclusion metadata
	PromptLabel   string `json:"promptLabel,omitempty"`
	PromptHint    string `json:"promptHint,omitempty"`
	PromptOrder   int    `json:"promptOrder"`
	AlwaysInclude bool   `json:"alwaysInclude"`

	Editable  bool  `json:"editable"`
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// ScoredDocument is a knowledge document with its full-text relevance score.
// Higher scores rank first.
type ScoredDocument struct {
	Doc   *KnowledgeDocument
	Score float64
}

// ServiceAccount is a connected third-party account (API key or OAuth
// tokens). At most one account per (user, service) is the default while any
// accounts for that service remain.
type ServiceAccount struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Service      string `json:"service"`
	AccountLabel string `json:"accountLabel"`
	APIKey       string `json:"apiKey,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IsDefault    bool   `json:"isDefault"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

// Credentials is the minimal secret bundle handed to integration callers.
type Credentials struct {
	APIKey       string `json:"apiKey,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Notification is a user-facing notice (e.g. "knowledge extracted from
// conversation"). ReadAt is nil while unread.
type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	ReadAt    *int64 `json:"readAt,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Storer defines the interface for data persistence.
// SQLiteStore is the sole implementation.
type Storer interface {
	// Users
	UpsertUser(u *User) error
	GetUser(id string) (*User, error)

	// Conversations
	CreateConversation(c *Conversation) error
	GetConversation(id string) (*Conversation, error)
	ListConversations(userID string) ([]*Conversation, error)
	DeleteConversation(id string) error
	SetConversationStatus(id, status string) error
	MarkAsBackground(id string) error
	SetStreamingStatus(id, streamingStatus string) error
	FindInterruptedConversations(userID string) ([]*Conversation, error)
	EnsureTitle(id, source string) error

	// Messages
	SaveMessage(msg *Message) error
	UpdateMessage(msg *Message) error
	UpsertMessage(msg *Message) error
	GetMessage(id string) (*Message, error)
	GetConversationMessages(conversationID string) ([]*Message, error)

	// Knowledge documents
	CreateDocument(doc *KnowledgeDocument) error
	UpdateDocument(doc *KnowledgeDocument) error
	UpsertDocumentByPath(doc *KnowledgeDocument) (created bool, err error)
	GetDocument(id string) (*KnowledgeDocument, error)
	GetDocumentByPath(userID, path string) (*KnowledgeDocument, error)
	ListDocumentsByPrefix(userID, pathPrefix string) ([]*KnowledgeDocument, error)
	MoveDocument(userID, fromPath, toPath string) error
	DeleteDocument(id string) error
	SearchByEntities(userID string, entities []string, limit int) ([]*KnowledgeDocument, error)
	SearchFullText(userID, query string, limit int) ([]ScoredDocument, error)

	// Integrations
	SaveServiceAccount(acct *ServiceAccount) error
	DeleteServiceAccount(id string) error
	ListServiceAccounts(userID, service string) ([]*ServiceAccount, error)
	GetCredentials(userID, service string) (*Credentials, error)

	// Notifications
	AddNotification(n *Notification) error
	ListUnreadNotifications(userID string) ([]*Notification, error)
	MarkNotificationRead(id string) error

	// Lifecycle
	Close() error
}
