package chat

import (
	"encoding/json"
	"fmt"

	"github.com/carmentacollective/carmenta-sub005/pkg/parts"
)

// exportedConversation is the stable JSON export shape.
type exportedConversation struct {
	ID       string            `json:"id"`
	Title    string            `json:"title,omitempty"`
	Status   string            `json:"status"`
	Messages []exportedMessage `json:"messages"`
}

type exportedMessage struct {
	Role      string           `json:"role"`
	CreatedAt int64            `json:"createdAt"`
	Parts     []parts.WirePart `json:"parts"`
}

// ExportConversation renders one conversation and its messages as indented
// JSON, parts in wire form.
func (s *Service) ExportConversation(conversationID string) (string, error) {
	conv, err := s.store.GetConversation(conversationID)
	if err != nil {
		return "", fmt.Errorf("chat: export: %w", err)
	}
	if conv == nil {
		return "", fmt.Errorf("chat: conversation %s not found", conversationID)
	}

	history, err := s.store.GetConversationMessages(conversationID)
	if err != nil {
		return "", fmt.Errorf("chat: export: %w", err)
	}

	out := exportedConversation{
		ID:     conv.ID,
		Title:  conv.Title,
		Status: conv.Status,
	}
	for _, m := range history {
		em := exportedMessage{Role: m.Role, CreatedAt: m.CreatedAt}
		for _, p := range parts.FromDBParts(m.Parts) {
			em.Parts = append(em.Parts, p.ToWire())
		}
		out.Messages = append(out.Messages, em)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("chat: export: %w", err)
	}
	return string(data), nil
}
