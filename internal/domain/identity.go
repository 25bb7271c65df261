package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Identify derives the stable identity for a raw document: the document id
// is a slug of the logical name, the content hash is the hex SHA-256 of the
// raw bytes. Both are deterministic across re-runs of the same source.
func Identify(name string, data []byte) (documentID, contentHash string) {
	return Slugify(name), HashBytes(data)
}

// HashBytes returns the hex-encoded SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Slugify normalizes a human-readable name to a stable lowercase id:
// alphanumerics are kept, separators become single dashes, everything else
// is dropped. An empty result falls back to "cao".
func Slugify(value string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(value) {
		switch {
		case unicode.IsLetter(ch) || unicode.IsDigit(ch):
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == ' ':
			b.WriteRune('-')
		}
	}

	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "cao"
	}
	return slug
}
