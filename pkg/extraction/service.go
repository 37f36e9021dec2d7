package extraction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
	"github.com/carmentacollective/carmenta-sub005/pkg/llm"
)

// DocumentWriter is the slice of the store extraction persists through.
type DocumentWriter interface {
	UpsertDocumentByPath(doc *store.KnowledgeDocument) (created bool, err error)
}

// Report summarizes one extraction run.
type Report struct {
	Created int
	Updated int
	Issues  []Issue
}

type Service struct {
	client llm.Client
	docs   DocumentWriter
	log    zerolog.Logger
}

func NewService(client llm.Client, docs DocumentWriter, log zerolog.Logger) *Service {
	return &Service{client: client, docs: docs, log: log}
}

// ExtractFromConversation asks the model for durable knowledge in the
// transcript and persists the valid candidates. Documents land with source
// type conversation_extraction and the conversation as source id, upserted
// by path so re-extraction refreshes rather than duplicates.
func (s *Service) ExtractFromConversation(ctx context.Context, userID, conversationID string, turns []Turn) (*Report, error) {
	if len(turns) == 0 {
		return &Report{}, nil
	}

	system, user := BuildPrompt(turns)
	result, err := s.client.Complete(ctx, []llm.Message{
		llm.TextMessage("system", system),
		llm.TextMessage("user", user),
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: completion: %w", err)
	}

	docs, issues, err := ParseResponse(result.Text())
	if err != nil {
		return nil, err
	}

	report := &Report{Issues: issues}
	for _, d := range docs {
		created, err := s.docs.UpsertDocumentByPath(&store.KnowledgeDocument{
			ID:          uuid.NewString(),
			UserID:      userID,
			Path:        d.Path,
			Name:        d.Name,
			Content:     d.Content,
			Description: d.Description,
			Summary:     d.Summary,
			Tags:        d.Tags,
			SourceType:  store.SourceConversationExtraction,
			SourceID:    conversationID,
			Editable:    true,
		})
		if err != nil {
			return report, fmt.Errorf("extraction: persist %s: %w", d.Path, err)
		}
		if created {
			report.Created++
		} else {
			report.Updated++
		}
	}

	s.log.Info().
		Str("conversation", conversationID).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("issues", len(report.Issues)).
		Msg("conversation extraction finished")

	return report, nil
}
