package service

import (
	"context"
	"fmt"

	"github.com/sectordocs/caodex/internal/domain"
)

// ChunkSearcher ranks stored chunks by cosine distance to a query vector.
type ChunkSearcher interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, matchCount int, documentID string) ([]*domain.ChunkMatch, error)
}

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Retrieval answers similarity queries over the chunk store.
type Retrieval struct {
	searcher ChunkSearcher
	embedder QueryEmbedder
}

// NewRetrieval creates a new Retrieval instance.
func NewRetrieval(searcher ChunkSearcher, embedder QueryEmbedder) *Retrieval {
	return &Retrieval{searcher: searcher, embedder: embedder}
}

// SearchInput describes one retrieval query. Either Query or Vector must be
// set; when both are set the vector wins and no embedding call is made.
type SearchInput struct {
	Query      string
	Vector     []float32
	MatchCount int
	DocumentID string
}

// Search embeds the query when needed and returns up to MatchCount chunks
// ordered by ascending cosine distance. An empty store, or a filter naming
// an unknown document, yields an empty result rather than an error.
func (r *Retrieval) Search(ctx context.Context, input SearchInput) ([]*domain.ChunkMatch, error) {
	if input.MatchCount <= 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("match count must be positive, got %d", input.MatchCount))
	}

	vector := input.Vector
	if len(vector) == 0 {
		if input.Query == "" {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "either a query or a query vector is required")
		}
		embedded, err := r.embedder.GenerateEmbedding(ctx, input.Query)
		if err != nil {
			return nil, err
		}
		vector = embedded
	}

	matches, err := r.searcher.SearchByEmbedding(ctx, vector, input.MatchCount, input.DocumentID)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, "chunk search failed", err)
	}
	return matches, nil
}
