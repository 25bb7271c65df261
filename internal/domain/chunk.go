package domain

import (
	"fmt"
	"time"
)

// Chunk is an embedded text span of a document. Chunks are created in one
// batch per document and never mutated afterwards; CharStart/CharEnd and
// PageStart/PageEnd record where in the extracted text the span came from.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float32
	PageStart  int
	PageEnd    int
	CharStart  int
	CharEnd    int
	CreatedAt  time.Time
}

// ChunkID derives the deterministic chunk identifier, so that re-ingesting
// a document produces the same ids and upserts stay idempotent.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s::%d", documentID, index)
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.ChunkIndex < 0 {
		return fmt.Errorf("chunk ChunkIndex cannot be negative")
	}

	if c.ID != ChunkID(c.DocumentID, c.ChunkIndex) {
		return fmt.Errorf("chunk ID %q does not match document %q index %d", c.ID, c.DocumentID, c.ChunkIndex)
	}

	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}

	if c.CharStart < 0 || c.CharStart >= c.CharEnd {
		return fmt.Errorf("chunk char range [%d, %d) is invalid", c.CharStart, c.CharEnd)
	}

	if c.PageStart <= 0 || c.PageStart > c.PageEnd {
		return fmt.Errorf("chunk page range [%d, %d] is invalid", c.PageStart, c.PageEnd)
	}

	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk Embedding is required")
	}

	return nil
}

// ChunkMatch is a retrieval result: a chunk with its distance to the query
// vector. Smaller distance means more similar.
type ChunkMatch struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Content    string
	PageStart  int
	PageEnd    int
	Distance   float64
}
