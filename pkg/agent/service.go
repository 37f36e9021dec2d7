// Package agent runs the tool-calling completion loop. The model may read
// and write knowledge documents via tools; every call is surfaced as a
// tool part moving through its state machine, so an interrupted run persists
// its calls in the input-available state.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
	"github.com/carmentacollective/carmenta-sub005/pkg/extraction"
	"github.com/carmentacollective/carmenta-sub005/pkg/llm"
	"github.com/carmentacollective/carmenta-sub005/pkg/parts"
)

// maxRounds bounds the loop; a model that keeps calling tools forever gets
// cut off with whatever it produced.
const maxRounds = 8

// DocumentStore is the slice of the store the tools operate on.
type DocumentStore interface {
	UpsertDocumentByPath(doc *store.KnowledgeDocument) (created bool, err error)
	GetDocumentByPath(userID, path string) (*store.KnowledgeDocument, error)
}

// Outcome is the finished run: the final reply text plus every part
// accumulated along the way, tool calls included, in order.
type Outcome struct {
	Text  string
	Parts []parts.Part
}

type Service struct {
	client llm.Client
	docs   DocumentStore
	log    zerolog.Logger
}

func NewService(client llm.Client, docs DocumentStore, log zerolog.Logger) *Service {
	return &Service{client: client, docs: docs, log: log}
}

// Run drives the completion loop until the model stops calling tools or the
// round limit hits. Tool execution failures are reported back to the model
// as output-error parts rather than aborting the run.
func (s *Service) Run(ctx context.Context, userID string, messages []llm.Message) (*Outcome, error) {
	outcome := &Outcome{}
	tools := Definitions()

	for round := 0; round < maxRounds; round++ {
		result, err := s.client.CompleteWithTools(ctx, messages, tools)
		if err != nil {
			return outcome, fmt.Errorf("agent: completion round %d: %w", round, err)
		}

		if len(result.ToolCalls) == 0 {
			outcome.Text = result.Text()
			if outcome.Text != "" {
				outcome.Parts = append(outcome.Parts, parts.Part{Kind: parts.KindText, Text: outcome.Text})
			}
			return outcome, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		for _, call := range result.ToolCalls {
			part := parts.Part{Kind: parts.KindTool, Tool: &parts.ToolInvocation{
				Name:   call.Function.Name,
				CallID: call.ID,
				State:  store.ToolInputAvailable,
				Input:  json.RawMessage(call.Function.Arguments),
			}}

			output, err := s.execute(userID, call)
			if err != nil {
				part.Tool.State = store.ToolOutputError
				part.Tool.ErrorText = err.Error()
				messages = append(messages, llm.ToolResultMessage(call.ID, "error: "+err.Error()))
			} else {
				part.Tool.State = store.ToolOutputAvailable
				part.Tool.Output = output
				messages = append(messages, llm.ToolResultMessage(call.ID, string(output)))
			}
			outcome.Parts = append(outcome.Parts, part)
		}
	}

	s.log.Warn().Str("owner", userID).Int("rounds", maxRounds).Msg("agent round limit reached")
	return outcome, nil
}

func (s *Service) execute(userID string, call llm.ToolCall) (json.RawMessage, error) {
	switch call.Function.Name {
	case "save_document":
		return s.saveDocument(userID, call.Function.Arguments)
	case "get_document":
		return s.getDocument(userID, call.Function.Arguments)
	default:
		return nil, fmt.Errorf("agent: unknown tool %q", call.Function.Name)
	}
}

type saveArgs struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

func (s *Service) saveDocument(userID, rawArgs string) (json.RawMessage, error) {
	var args saveArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("agent: save_document arguments: %w", err)
	}
	if err := extraction.ValidatePath(args.Path); err != nil {
		return nil, err
	}
	if args.Name == "" || args.Content == "" {
		return nil, fmt.Errorf("agent: save_document requires name and content")
	}

	created, err := s.docs.UpsertDocumentByPath(&store.KnowledgeDocument{
		ID:          uuid.NewString(),
		UserID:      userID,
		Path:        args.Path,
		Name:        args.Name,
		Content:     args.Content,
		Description: args.Description,
		SourceType:  store.SourceManual,
		Editable:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: save_document: %w", err)
	}

	return json.Marshal(map[string]any{"path": args.Path, "created": created})
}

type getArgs struct {
	Path string `json:"path"`
}

func (s *Service) getDocument(userID, rawArgs string) (json.RawMessage, error) {
	var args getArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("agent: get_document arguments: %w", err)
	}

	doc, err := s.docs.GetDocumentByPath(userID, args.Path)
	if err != nil {
		return nil, fmt.Errorf("agent: get_document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("agent: no document at %q", args.Path)
	}

	return json.Marshal(map[string]any{
		"path":    doc.Path,
		"name":    doc.Name,
		"content": doc.Content,
	})
}
