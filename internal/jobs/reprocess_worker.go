package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/sectordocs/caodex/internal/domain"
)

const (
	// MaxAttempts is the maximum number of reprocess attempts per document
	MaxAttempts = 3
)

// DocumentSource lists documents whose processing never completed.
type DocumentSource interface {
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.Document, error)
}

// ReprocessPipeline re-runs extraction through chunk persistence for a
// registered document.
type ReprocessPipeline interface {
	Reprocess(ctx context.Context, doc *domain.Document) (int, error)
}

// ReprocessWorker picks up documents left with a null processed_at by an
// interrupted or failed ingestion and runs them through the pipeline again.
// The pipeline's transactional replace makes a re-run safe at any point.
// Each document gets MaxAttempts tries; a document that keeps failing (a
// malformed or image-only PDF does not become readable on retry) is dropped
// from the poll cycle instead of being re-downloaded forever.
type ReprocessWorker struct {
	source    DocumentSource
	pipeline  ReprocessPipeline
	batchSize int
	attempts  map[string]int
}

// NewReprocessWorker creates a new ReprocessWorker instance
func NewReprocessWorker(source DocumentSource, pipeline ReprocessPipeline, batchSize int) *ReprocessWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ReprocessWorker{
		source:    source,
		pipeline:  pipeline,
		batchSize: batchSize,
		attempts:  make(map[string]int),
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReprocessWorker) ProcessJobs(ctx context.Context) error {
	docs, err := w.source.ListUnprocessed(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list unprocessed documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.attempts[doc.ID] >= MaxAttempts {
			continue
		}

		w.attempts[doc.ID]++
		count, err := w.pipeline.Reprocess(ctx, doc)
		if err != nil {
			if w.attempts[doc.ID] >= MaxAttempts {
				log.Printf("document %s exceeded max reprocess attempts (%d), giving up: %v", doc.ID, MaxAttempts, err)
			} else {
				log.Printf("error reprocessing document %s (attempt %d/%d): %v", doc.ID, w.attempts[doc.ID], MaxAttempts, err)
			}
			continue
		}

		delete(w.attempts, doc.ID)
		log.Printf("document %s reprocessed (%d chunks)", doc.ID, count)
	}

	return nil
}
