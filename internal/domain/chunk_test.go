package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChunk() Chunk {
	return Chunk{
		ID:         ChunkID("cao-bouw", 0),
		DocumentID: "cao-bouw",
		ChunkIndex: 0,
		Content:    "some agreement text",
		Embedding:  []float32{0.1, 0.2, 0.3},
		PageStart:  1,
		PageEnd:    1,
		CharStart:  0,
		CharEnd:    19,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "cao-bouw::0", ChunkID("cao-bouw", 0))
	assert.Equal(t, "cao-bouw::42", ChunkID("cao-bouw", 42))
}

func TestValidateChunk(t *testing.T) {
	t.Run("valid chunk", func(t *testing.T) {
		c := validChunk()
		require.NoError(t, ValidateChunk(&c))
	})

	t.Run("nil chunk", func(t *testing.T) {
		assert.Error(t, ValidateChunk(nil))
	})

	t.Run("id must match document and index", func(t *testing.T) {
		c := validChunk()
		c.ID = "cao-bouw::7"
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("empty content", func(t *testing.T) {
		c := validChunk()
		c.Content = ""
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("negative index", func(t *testing.T) {
		c := validChunk()
		c.ChunkIndex = -1
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("char start must precede char end", func(t *testing.T) {
		c := validChunk()
		c.CharStart = 19
		c.CharEnd = 19
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("page start must be positive", func(t *testing.T) {
		c := validChunk()
		c.PageStart = 0
		c.PageEnd = 0
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("page end before page start", func(t *testing.T) {
		c := validChunk()
		c.PageStart = 3
		c.PageEnd = 2
		assert.Error(t, ValidateChunk(&c))
	})

	t.Run("missing embedding", func(t *testing.T) {
		c := validChunk()
		c.Embedding = nil
		assert.Error(t, ValidateChunk(&c))
	})
}
