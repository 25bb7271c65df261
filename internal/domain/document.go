package domain

import (
	"fmt"
	"time"
)

// Document represents one ingested sector labor-agreement (CAO) document.
// The ID is a deterministic slug of the CAO name so that re-scraping the
// same source maps to the same row; ContentHash tracks the raw bytes.
type Document struct {
	ID            string
	Name          string
	SourceURL     string
	StorageBucket string
	StoragePath   string
	ContentHash   string
	ByteSize      int64
	IngestedAt    time.Time
	ProcessedAt   *time.Time
}

// Processed reports whether chunking and embedding completed for this
// document. A nil ProcessedAt is the recovery signal for a re-run.
func (d *Document) Processed() bool {
	return d.ProcessedAt != nil
}

// HasChanged reports whether the given content hash differs from the
// persisted one.
func (d *Document) HasChanged(contentHash string) bool {
	return d.ContentHash != contentHash
}

// NewDocument creates a new Document instance
func NewDocument(id, name, sourceURL, storageBucket, storagePath, contentHash string, byteSize int64, ingestedAt time.Time) *Document {
	return &Document{
		ID:            id,
		Name:          name,
		SourceURL:     sourceURL,
		StorageBucket: storageBucket,
		StoragePath:   storagePath,
		ContentHash:   contentHash,
		ByteSize:      byteSize,
		IngestedAt:    ingestedAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}

	if d.ContentHash == "" {
		return fmt.Errorf("document ContentHash is required")
	}

	if d.ByteSize <= 0 {
		return fmt.Errorf("document ByteSize must be greater than 0")
	}

	return nil
}

// RawDocument is the scraper collaborator's output: raw PDF bytes plus the
// minimal metadata needed to identify and store the document.
type RawDocument struct {
	Name      string
	FileName  string
	SourceURL string
	Bytes     []byte
}
