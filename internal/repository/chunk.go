package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/sectordocs/caodex/internal/domain"
)

// ChunkRepository handles persistence and similarity search of chunks.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts the new
// set. Callers run it inside a transaction together with MarkProcessed so a
// reader never observes a processed document with a partial chunk set.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks
				(chunk_id, document_id, chunk_index, content, embedding, page_start, page_end, char_start, char_end, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID,
			c.DocumentID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			c.PageStart,
			c.PageEnd,
			c.CharStart,
			c.CharEnd,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// CountByDocument returns how many chunks a document currently has.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}

// SearchByEmbedding returns up to matchCount chunks ordered by cosine
// distance to the query vector, ascending, with chunk_index as the
// deterministic tie-break. An empty documentID means all documents are
// eligible. The <=> operator must match the metric of the index built at
// ingest time.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, matchCount int, documentID string) ([]*domain.ChunkMatch, error) {
	vec := pgvector.NewVector(embedding)

	query := `
		SELECT chunk_id, document_id, chunk_index, content, page_start, page_end,
		       embedding <=> $1 AS distance
		FROM chunks
		ORDER BY distance ASC, chunk_index ASC
		LIMIT $2`
	args := []interface{}{vec, matchCount}

	if documentID != "" {
		query = `
		SELECT chunk_id, document_id, chunk_index, content, page_start, page_end,
		       embedding <=> $1 AS distance
		FROM chunks
		WHERE document_id = $2
		ORDER BY distance ASC, chunk_index ASC
		LIMIT $3`
		args = []interface{}{vec, documentID, matchCount}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*domain.ChunkMatch, 0)
	for rows.Next() {
		var m domain.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.ChunkIndex, &m.Content, &m.PageStart, &m.PageEnd, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, &m)
	}

	return matches, rows.Err()
}
