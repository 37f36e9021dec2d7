// Package retrieval selects knowledge documents for prompt injection: entity
// and full-text search over a per-owner document store, merged, deduplicated,
// capped, and serialized as an XML fragment.
package retrieval

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

// Retrieval reasons attached to each returned document.
const (
	ReasonEntityMatch = "entity_match"
	ReasonSearchMatch = "search_match"
)

// DefaultMaxDocuments caps the result set when the caller does not.
const DefaultMaxDocuments = 10

// SearchConfig describes what to look for. ShouldSearch false, or an empty
// configuration, short-circuits retrieval entirely.
type SearchConfig struct {
	ShouldSearch bool     `json:"shouldSearch"`
	Queries      []string `json:"queries"`
	Entities     []string `json:"entities"`
}

// RetrievedDocument is one selected document with its ranking metadata.
type RetrievedDocument struct {
	Doc       *store.KnowledgeDocument
	Relevance float64
	Reason    string
}

// Result is what retrieval hands to the chat flow. Success is true even when
// storage failed underneath: knowledge lookup must never break a chat
// response, so errors degrade to an empty set.
type Result struct {
	Success         bool
	Documents       []RetrievedDocument
	EstimatedTokens int
}

// Searcher is the slice of the store retrieval needs.
type Searcher interface {
	SearchByEntities(userID string, entities []string, limit int) ([]*store.KnowledgeDocument, error)
	SearchFullText(userID, query string, limit int) ([]store.ScoredDocument, error)
}

// Service runs retrieval for one configured cap.
type Service struct {
	store        Searcher
	maxDocuments int
	log          zerolog.Logger
}

// NewService builds a retrieval service. maxDocuments <= 0 falls back to
// DefaultMaxDocuments.
func NewService(st Searcher, maxDocuments int, log zerolog.Logger) *Service {
	if maxDocuments <= 0 {
		maxDocuments = DefaultMaxDocuments
	}
	return &Service{store: st, maxDocuments: maxDocuments, log: log}
}

// RetrieveContext runs the full pipeline for one owner. Order in the result:
// entity matches first (in entity order), then search matches by descending
// relevance. A document matched both ways appears once, as an entity match.
func (s *Service) RetrieveContext(ownerID string, cfg SearchConfig) Result {
	if !cfg.ShouldSearch || (len(cfg.Queries) == 0 && len(cfg.Entities) == 0) {
		return Result{Success: true}
	}

	seen := make(map[string]bool)
	var out []RetrievedDocument

	if len(cfg.Entities) > 0 {
		docs, err := s.store.SearchByEntities(ownerID, cfg.Entities, s.maxDocuments)
		if err != nil {
			s.log.Warn().Err(err).Str("owner", ownerID).Msg("entity search failed, continuing without")
		}
		for _, d := range docs {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, RetrievedDocument{Doc: d, Relevance: 1.0, Reason: ReasonEntityMatch})
		}
	}

	for _, hit := range s.searchQueries(ownerID, cfg.Queries) {
		if seen[hit.Doc.ID] {
			continue
		}
		seen[hit.Doc.ID] = true
		out = append(out, RetrievedDocument{Doc: hit.Doc, Relevance: hit.Score, Reason: ReasonSearchMatch})
	}

	if len(out) > s.maxDocuments {
		out = out[:s.maxDocuments]
	}

	return Result{
		Success:         true,
		Documents:       out,
		EstimatedTokens: estimateTokens(out),
	}
}

// searchQueries runs every query through full-text search and returns the
// union ranked by best score. A document hit by several queries keeps its
// highest score.
func (s *Service) searchQueries(ownerID string, queries []string) []store.ScoredDocument {
	best := make(map[string]store.ScoredDocument)
	for _, q := range queries {
		match := BuildMatchQuery(q)
		if match == "" {
			continue
		}
		hits, err := s.store.SearchFullText(ownerID, match, s.maxDocuments)
		if err != nil {
			s.log.Warn().Err(err).Str("query", q).Msg("full-text search failed, continuing without")
			continue
		}
		for _, h := range hits {
			if prev, ok := best[h.Doc.ID]; !ok || h.Score > prev.Score {
				best[h.Doc.ID] = h
			}
		}
	}

	ranked := make([]store.ScoredDocument, 0, len(best))
	for _, h := range best {
		ranked = append(ranked, h)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// estimateTokens approximates prompt cost at four characters per token,
// summed over document content. A heuristic, not a tokenizer.
func estimateTokens(docs []RetrievedDocument) int {
	total := 0
	for _, d := range docs {
		total += len(d.Doc.Content) / 4
	}
	return total
}
