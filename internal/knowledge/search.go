package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ValmirAutomacao/optusadmin-sub000/internal/model"
	"github.com/ValmirAutomacao/optusadmin-sub000/prometheus"
)

// minRelevance is the score floor below which chunks are discarded.
// Callers depend on this exact threshold for reply behavior, keep as-is.
const minRelevance = 0.1

// SearchResult is one relevant chunk from a tenant's knowledge base
type SearchResult struct {
	DocumentID   uint    `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkText    string  `json:"chunk_text"`
	Relevance    float64 `json:"relevance"`
}

// Search scores every chunk of the tenant's ready, active documents against
// the query and returns up to limit results ordered by descending relevance.
// The sort is stable so equal scores keep document and chunk order, which
// keeps results deterministic.
func (s *Service) Search(ctx context.Context, tenantID uint, query, category string, limit int) ([]SearchResult, error) {
	prometheus.KnowledgeSearchCounter.Inc()

	if limit <= 0 {
		limit = 5
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	q := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND active = ?", tenantID, model.DocumentReady, true)
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var docs []model.KnowledgeDocument
	if err := q.Order("id").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to load knowledge documents: %w", err)
	}

	var results []SearchResult
	for _, doc := range docs {
		chunks := []string(doc.Chunks)
		if len(chunks) == 0 && doc.RawText != "" {
			chunks = []string{doc.RawText}
		}
		for _, chunk := range chunks {
			score := scoreChunk(chunk, terms)
			if score <= minRelevance {
				continue
			}
			results = append(results, SearchResult{
				DocumentID:   doc.ID,
				DocumentName: doc.Name,
				ChunkText:    chunk,
				Relevance:    score,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scoreChunk returns the fraction of chunk words that match any query term,
// where a word matches when it contains the term or the term contains it.
func scoreChunk(chunk string, terms []string) float64 {
	words := strings.Fields(strings.ToLower(chunk))
	if len(words) == 0 {
		return 0
	}

	matched := 0
	for _, word := range words {
		for _, term := range terms {
			if strings.Contains(word, term) || strings.Contains(term, word) {
				matched++
				break
			}
		}
	}

	score := float64(matched) / float64(len(words))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func queryTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
