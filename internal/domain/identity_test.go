package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "Metalektro", "metalektro"},
		{"spaces become dashes", "CAO Bouw en Infra", "cao-bouw-en-infra"},
		{"underscores become dashes", "cao_metaal_2024", "cao-metaal-2024"},
		{"punctuation dropped", "CAO: Schoonmaak (2024)!", "cao-schoonmaak-2024"},
		{"consecutive separators collapse", "cao  --  bouw", "cao-bouw"},
		{"leading and trailing separators trimmed", "  -cao bouw- ", "cao-bouw"},
		{"unicode letters kept", "Horéca", "horéca"},
		{"empty input falls back", "", "cao"},
		{"only punctuation falls back", "!!!", "cao"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	assert.Equal(t, Slugify("CAO Bouw 2024"), Slugify("CAO Bouw 2024"))
}

func TestHashBytes(t *testing.T) {
	// SHA-256 of the empty input is a well-known constant.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashBytes(nil))

	assert.Equal(t, HashBytes([]byte("abc")), HashBytes([]byte("abc")))
	assert.NotEqual(t, HashBytes([]byte("abc")), HashBytes([]byte("abd")))
	assert.Len(t, HashBytes([]byte("abc")), 64)
}

func TestIdentify(t *testing.T) {
	id, hash := Identify("CAO Metalektro", []byte("pdf bytes"))
	assert.Equal(t, "cao-metalektro", id)
	assert.Equal(t, HashBytes([]byte("pdf bytes")), hash)

	// Same name with different bytes keeps the id but changes the hash.
	id2, hash2 := Identify("CAO Metalektro", []byte("other bytes"))
	assert.Equal(t, id, id2)
	assert.NotEqual(t, hash, hash2)
}
