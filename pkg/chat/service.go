// Package chat orchestrates conversation turns: persistence, streaming
// status, context compilation (profile + retrieved knowledge), the agent
// loop, and interrupted-session recovery.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
	"github.com/carmentacollective/carmenta-sub005/pkg/agent"
	"github.com/carmentacollective/carmenta-sub005/pkg/docstore"
	"github.com/carmentacollective/carmenta-sub005/pkg/entity"
	"github.com/carmentacollective/carmenta-sub005/pkg/extraction"
	"github.com/carmentacollective/carmenta-sub005/pkg/llm"
	"github.com/carmentacollective/carmenta-sub005/pkg/parts"
	"github.com/carmentacollective/carmenta-sub005/pkg/profile"
	"github.com/carmentacollective/carmenta-sub005/pkg/retrieval"
)

// Service wires the conversation flows end to end.
type Service struct {
	store     store.Storer
	retrieval *retrieval.Service
	profile   *profile.Service
	detector  *entity.Detector
	agent     *agent.Service
	extractor *extraction.Service
	docs      *docstore.Store
	log       zerolog.Logger
}

func NewService(
	st store.Storer,
	ret *retrieval.Service,
	prof *profile.Service,
	det *entity.Detector,
	ag *agent.Service,
	ext *extraction.Service,
	docs *docstore.Store,
	log zerolog.Logger,
) *Service {
	return &Service{
		store:     st,
		retrieval: ret,
		profile:   prof,
		detector:  det,
		agent:     ag,
		extractor: ext,
		docs:      docs,
		log:       log,
	}
}

// =============================================================================
// Conversation lifecycle
// =============================================================================

// StartConversation creates a fresh active conversation.
func (s *Service) StartConversation(userID, modelID string) (*store.Conversation, error) {
	now := time.Now().UnixMilli()
	conv := &store.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(conv); err != nil {
		return nil, fmt.Errorf("chat: create conversation: %w", err)
	}
	return conv, nil
}

// SendUserMessage persists one user turn and derives the conversation title
// from it if none exists yet.
func (s *Service) SendUserMessage(conversationID, text string) (*store.Message, error) {
	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           "user",
		CreatedAt:      time.Now().UnixMilli(),
	}
	msg.Parts = parts.ToDBParts(msg.ID, []parts.Part{{Kind: parts.KindText, Text: text}})

	if err := s.store.SaveMessage(msg); err != nil {
		return nil, fmt.Errorf("chat: save user message: %w", err)
	}
	if err := s.store.EnsureTitle(conversationID, text); err != nil {
		return nil, fmt.Errorf("chat: ensure title: %w", err)
	}
	return msg, nil
}

// MarkAsBackground flags that the user left while a response was in flight.
// Touches conversation status only; streaming status is a separate machine.
func (s *Service) MarkAsBackground(conversationID string) error {
	return s.store.MarkAsBackground(conversationID)
}

// =============================================================================
// Context compilation
// =============================================================================

const baseSystemPrompt = "You are Carmenta, a thoughtful assistant with a long-term memory. " +
	"Use the knowledge context below when it is relevant; never invent facts about the user."

// BuildSearchConfig derives the retrieval configuration for one user message:
// the message itself as a free-text query plus any known entities detected in
// it. A blank message searches nothing.
func (s *Service) BuildSearchConfig(userID, text string) retrieval.SearchConfig {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return retrieval.SearchConfig{}
	}
	return retrieval.SearchConfig{
		ShouldSearch: true,
		Queries:      []string{trimmed},
		Entities:     s.detector.DetectEntities(userID, trimmed),
	}
}

// ComposeSystemPrompt assembles the system prompt for one turn: base
// instructions, the compiled profile, and the retrieved knowledge fragment.
// Both context sources degrade to absent rather than failing the turn.
func (s *Service) ComposeSystemPrompt(userID, userText string) string {
	sections := []string{baseSystemPrompt}

	if prof := s.profile.Compile(userID); prof != "" {
		sections = append(sections, "About the user:\n\n"+prof)
	}

	result := s.retrieval.RetrieveContext(userID, s.BuildSearchConfig(userID, userText))
	if xml := retrieval.SerializeContext(result.Documents); xml != nil {
		sections = append(sections, *xml)
	}

	return strings.Join(sections, "\n\n")
}

// =============================================================================
// Streaming persistence
// =============================================================================

// BeginStreaming marks the conversation streaming and creates the assistant
// message shell that snapshots will be written into.
func (s *Service) BeginStreaming(conversationID string) (messageID string, err error) {
	if err := s.store.SetStreamingStatus(conversationID, store.StreamingActive); err != nil {
		return "", fmt.Errorf("chat: begin streaming: %w", err)
	}
	return uuid.NewString(), nil
}

// SaveSnapshot upserts the assistant message with the parts accumulated so
// far. Called repeatedly while output arrives; the first call inserts, the
// rest replace the full part set.
func (s *Service) SaveSnapshot(conversationID, messageID string, ps []parts.Part) error {
	msg := &store.Message{
		ID:             messageID,
		ConversationID: conversationID,
		Role:           "assistant",
		CreatedAt:      time.Now().UnixMilli(),
		Parts:          parts.ToDBParts(messageID, ps),
	}
	if err := s.store.UpsertMessage(msg); err != nil {
		return fmt.Errorf("chat: save snapshot: %w", err)
	}
	return nil
}

// CompleteStreaming persists the final part set and closes the streaming
// state machine.
func (s *Service) CompleteStreaming(conversationID, messageID string, ps []parts.Part) error {
	if err := s.SaveSnapshot(conversationID, messageID, ps); err != nil {
		return err
	}
	if err := s.store.SetStreamingStatus(conversationID, store.StreamingCompleted); err != nil {
		return fmt.Errorf("chat: complete streaming: %w", err)
	}
	return nil
}

// FailStreaming records the failure, keeping whatever partial content was
// already snapshotted.
func (s *Service) FailStreaming(conversationID string) error {
	if err := s.store.SetStreamingStatus(conversationID, store.StreamingFailed); err != nil {
		return fmt.Errorf("chat: fail streaming: %w", err)
	}
	return nil
}

// =============================================================================
// One full turn
// =============================================================================

// Respond runs a complete assistant turn for the newest user message: compile
// context, run the agent loop, persist the result through the streaming state
// machine. On failure the partial outcome is kept and the conversation lands
// in streaming_status=failed.
func (s *Service) Respond(ctx context.Context, conversationID string) (*store.Message, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: respond: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("chat: conversation %s not found", conversationID)
	}

	history, err := s.store.GetConversationMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: respond: %w", err)
	}

	return s.respond(ctx, conv, history, "")
}

// respond runs one assistant turn over the given history. Empty messageID
// mints a fresh assistant message; a non-empty one overwrites that message's
// part set (the resume path completing a stuck partial in place).
func (s *Service) respond(ctx context.Context, conv *store.Conversation, history []*store.Message, messageID string) (*store.Message, error) {
	lastUser := lastUserText(history)

	messages := []llm.Message{llm.TextMessage("system", s.ComposeSystemPrompt(conv.UserID, lastUser))}
	messages = append(messages, toLLMMessages(history)...)

	if messageID == "" {
		var err error
		messageID, err = s.BeginStreaming(conv.ID)
		if err != nil {
			return nil, err
		}
	} else if err := s.store.SetStreamingStatus(conv.ID, store.StreamingActive); err != nil {
		return nil, fmt.Errorf("chat: begin streaming: %w", err)
	}

	outcome, runErr := s.agent.Run(ctx, conv.UserID, messages)
	if runErr != nil {
		if len(outcome.Parts) > 0 {
			if err := s.SaveSnapshot(conv.ID, messageID, outcome.Parts); err != nil {
				s.log.Error().Err(err).Msg("failed to persist partial outcome")
			}
		}
		if err := s.FailStreaming(conv.ID); err != nil {
			s.log.Error().Err(err).Msg("failed to mark streaming failed")
		}
		return nil, fmt.Errorf("chat: respond: %w", runErr)
	}

	if err := s.CompleteStreaming(conv.ID, messageID, outcome.Parts); err != nil {
		return nil, err
	}

	// tool calls may have written documents; refresh the entity snapshot
	if s.docs != nil {
		if _, err := s.docs.Hydrate(conv.UserID, s.store); err != nil {
			s.log.Warn().Err(err).Msg("snapshot rehydrate failed")
		}
	}

	return s.store.GetMessage(messageID)
}

// =============================================================================
// Recovery
// =============================================================================

// FindInterrupted returns conversations stuck mid-stream, e.g. after a crash
// or closed window. Callers decide per conversation whether to resume or
// discard.
func (s *Service) FindInterrupted(userID string) ([]*store.Conversation, error) {
	return s.store.FindInterruptedConversations(userID)
}

// DiscardInterrupted resolves a stuck conversation without resuming: the
// partial assistant message stays, the streaming status moves to failed.
func (s *Service) DiscardInterrupted(conversationID string) error {
	return s.store.SetStreamingStatus(conversationID, store.StreamingFailed)
}

// ResumeInterrupted re-runs the turn for a stuck conversation. The partial
// assistant message left mid-stream is completed in place rather than
// duplicated, and the conversation returns to active once the turn succeeds.
func (s *Service) ResumeInterrupted(ctx context.Context, conversationID string) (*store.Message, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: resume: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("chat: conversation %s not found", conversationID)
	}

	history, err := s.store.GetConversationMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: resume: %w", err)
	}

	// the trailing assistant message is the stuck partial; it is replayed
	// neither to the model nor as a second turn in storage
	var messageID string
	if n := len(history); n > 0 && history[n-1].Role == "assistant" {
		messageID = history[n-1].ID
		history = history[:n-1]
	}

	msg, err := s.respond(ctx, conv, history, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetConversationStatus(conversationID, store.ConversationActive); err != nil {
		return nil, fmt.Errorf("chat: resume: %w", err)
	}
	return msg, nil
}

// =============================================================================
// Knowledge extraction
// =============================================================================

// ExtractKnowledge mines the conversation for durable facts, persists them,
// and notifies the user when anything was saved.
func (s *Service) ExtractKnowledge(ctx context.Context, conversationID string) (*extraction.Report, error) {
	if s.extractor == nil {
		return &extraction.Report{}, nil
	}

	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: extract: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("chat: conversation %s not found", conversationID)
	}

	history, err := s.store.GetConversationMessages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("chat: extract: %w", err)
	}

	var turns []extraction.Turn
	for _, m := range history {
		if text := messageText(m); text != "" {
			turns = append(turns, extraction.Turn{Role: m.Role, Text: text})
		}
	}

	report, err := s.extractor.ExtractFromConversation(ctx, conv.UserID, conversationID, turns)
	if err != nil {
		return nil, err
	}

	if report.Created+report.Updated > 0 {
		if s.docs != nil {
			if _, err := s.docs.Hydrate(conv.UserID, s.store); err != nil {
				s.log.Warn().Err(err).Msg("snapshot rehydrate failed")
			}
		}
		note := &store.Notification{
			ID:        uuid.NewString(),
			UserID:    conv.UserID,
			Kind:      "knowledge_extracted",
			Title:     "Knowledge saved from conversation",
			Body:      fmt.Sprintf("%d created, %d updated", report.Created, report.Updated),
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := s.store.AddNotification(note); err != nil {
			s.log.Warn().Err(err).Msg("notification write failed")
		}
	}

	return report, nil
}

// =============================================================================
// Helpers
// =============================================================================

// toLLMMessages flattens stored history into provider turns. Tool parts are
// not replayed; their outcomes are already folded into the assistant text.
func toLLMMessages(history []*store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if text := messageText(m); text != "" {
			out = append(out, llm.TextMessage(m.Role, text))
		}
	}
	return out
}

// messageText concatenates a message's text parts.
func messageText(m *store.Message) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == store.PartText {
			b.WriteString(p.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

func lastUserText(history []*store.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return messageText(history[i])
		}
	}
	return ""
}
