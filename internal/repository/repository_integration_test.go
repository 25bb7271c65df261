//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectordocs/caodex/internal/domain"
	"github.com/sectordocs/caodex/internal/service"
	"github.com/sectordocs/caodex/internal/testutil"
)

// basisVector returns a 1536-dimensional unit vector along the given axis.
// Cosine distance between distinct basis vectors is exactly 1, so rankings
// in the search tests are unambiguous.
func basisVector(axis int) []float32 {
	vec := make([]float32, 1536)
	vec[axis] = 1
	return vec
}

func testDocument(id, name string) *domain.Document {
	return domain.NewDocument(id, name, "https://example.com/"+id+".pdf", "cao-pdfs", id+"/"+id+".pdf",
		domain.HashBytes([]byte(id)), 100, time.Now().UTC().Truncate(time.Microsecond))
}

func testChunk(documentID string, index int, axis int) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID(documentID, index),
		DocumentID: documentID,
		ChunkIndex: index,
		Content:    "chunk content " + domain.ChunkID(documentID, index),
		Embedding:  basisVector(axis),
		PageStart:  1,
		PageEnd:    1,
		CharStart:  index * 500,
		CharEnd:    index*500 + 500,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestDocumentRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	t.Run("upsert and get", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := testDocument("cao-bouw", "CAO Bouw")
		require.NoError(t, repo.Upsert(ctx, doc))

		got, err := repo.GetByID(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Equal(t, doc.ID, got.ID)
		assert.Equal(t, doc.Name, got.Name)
		assert.Equal(t, doc.ContentHash, got.ContentHash)
		assert.Nil(t, got.ProcessedAt)
	})

	t.Run("get missing document", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "cao-missing")
		assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))
	})

	t.Run("upsert resets processed_at", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		doc := testDocument("cao-bouw", "CAO Bouw")
		require.NoError(t, repo.Upsert(ctx, doc))
		require.NoError(t, repo.MarkProcessed(ctx, "cao-bouw", time.Now().UTC()))

		got, err := repo.GetByID(ctx, "cao-bouw")
		require.NoError(t, err)
		require.NotNil(t, got.ProcessedAt)

		// A new upsert of the same id marks the document unprocessed again.
		doc.ContentHash = domain.HashBytes([]byte("new bytes"))
		require.NoError(t, repo.Upsert(ctx, doc))

		got, err = repo.GetByID(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Nil(t, got.ProcessedAt)
		assert.Equal(t, doc.ContentHash, got.ContentHash)
	})

	t.Run("list orders by name", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		require.NoError(t, repo.Upsert(ctx, testDocument("cao-metaal", "CAO Metaal")))
		require.NoError(t, repo.Upsert(ctx, testDocument("cao-bouw", "CAO Bouw")))

		docs, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "CAO Bouw", docs[0].Name)
		assert.Equal(t, "CAO Metaal", docs[1].Name)
	})

	t.Run("list unprocessed", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		require.NoError(t, repo.Upsert(ctx, testDocument("cao-bouw", "CAO Bouw")))
		require.NoError(t, repo.Upsert(ctx, testDocument("cao-metaal", "CAO Metaal")))
		require.NoError(t, repo.MarkProcessed(ctx, "cao-bouw", time.Now().UTC()))

		docs, err := repo.ListUnprocessed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "cao-metaal", docs[0].ID)
	})

	t.Run("mark processed unknown document", func(t *testing.T) {
		err := repo.MarkProcessed(ctx, "cao-missing", time.Now().UTC())
		assert.Error(t, err)
	})

	t.Run("delete cascades to chunks", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		chunkRepo := NewChunkRepository(pool)
		require.NoError(t, repo.Upsert(ctx, testDocument("cao-bouw", "CAO Bouw")))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
			testChunk("cao-bouw", 1, 1),
		}))

		require.NoError(t, repo.Delete(ctx, "cao-bouw"))

		_, err := repo.GetByID(ctx, "cao-bouw")
		assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))

		count, err := chunkRepo.CountByDocument(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestChunkRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	seed := func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		require.NoError(t, docRepo.Upsert(ctx, testDocument("cao-bouw", "CAO Bouw")))
		require.NoError(t, docRepo.Upsert(ctx, testDocument("cao-metaal", "CAO Metaal")))
	}

	t.Run("replace chunks is idempotent", func(t *testing.T) {
		seed(t)

		chunks := []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
			testChunk("cao-bouw", 1, 1),
			testChunk("cao-bouw", 2, 2),
		}
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", chunks))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", chunks))

		count, err := chunkRepo.CountByDocument(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("replace shrinks the chunk set", func(t *testing.T) {
		seed(t)

		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
			testChunk("cao-bouw", 1, 1),
		}))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
		}))

		count, err := chunkRepo.CountByDocument(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("search ranks by cosine distance", func(t *testing.T) {
		seed(t)

		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
			testChunk("cao-bouw", 1, 1),
		}))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-metaal", []domain.Chunk{
			testChunk("cao-metaal", 0, 2),
		}))

		// The query vector points along axis 1: cao-bouw::1 matches exactly.
		matches, err := chunkRepo.SearchByEmbedding(ctx, basisVector(1), 2, "")
		require.NoError(t, err)
		require.Len(t, matches, 2)

		assert.Equal(t, "cao-bouw::1", matches[0].ChunkID)
		assert.InDelta(t, 0.0, matches[0].Distance, 1e-6)
		assert.InDelta(t, 1.0, matches[1].Distance, 1e-6)
		assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	})

	t.Run("search respects document filter", func(t *testing.T) {
		seed(t)

		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
		}))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-metaal", []domain.Chunk{
			testChunk("cao-metaal", 0, 0),
		}))

		matches, err := chunkRepo.SearchByEmbedding(ctx, basisVector(0), 10, "cao-metaal")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "cao-metaal", matches[0].DocumentID)
	})

	t.Run("search empty store returns empty slice", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		matches, err := chunkRepo.SearchByEmbedding(ctx, basisVector(0), 5, "")
		require.NoError(t, err)
		assert.NotNil(t, matches)
		assert.Empty(t, matches)
	})
}

func TestTxRunnerIntegration(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)
	runner := NewTxRunner(pool)

	t.Run("commit persists chunk replace and processed flip together", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		require.NoError(t, docRepo.Upsert(ctx, testDocument("cao-bouw", "CAO Bouw")))

		now := time.Now().UTC().Truncate(time.Microsecond)
		err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
			if err := repos.Chunks().ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{testChunk("cao-bouw", 0, 0)}); err != nil {
				return err
			}
			return repos.Documents().MarkProcessed(ctx, "cao-bouw", now)
		})
		require.NoError(t, err)

		doc, err := docRepo.GetByID(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.NotNil(t, doc.ProcessedAt)

		count, err := chunkRepo.CountByDocument(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("rollback leaves previous state intact", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		require.NoError(t, docRepo.Upsert(ctx, testDocument("cao-bouw", "CAO Bouw")))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{
			testChunk("cao-bouw", 0, 0),
			testChunk("cao-bouw", 1, 1),
		}))

		wantErr := errors.New("forced failure")
		err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
			if err := repos.Chunks().ReplaceChunks(ctx, "cao-bouw", []domain.Chunk{testChunk("cao-bouw", 0, 2)}); err != nil {
				return err
			}
			return wantErr
		})
		assert.True(t, errors.Is(err, wantErr))

		// The old chunk set survives the rolled-back replace.
		count, err := chunkRepo.CountByDocument(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		doc, err := docRepo.GetByID(ctx, "cao-bouw")
		require.NoError(t, err)
		assert.Nil(t, doc.ProcessedAt)
	})
}
