package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sectordocs/caodex/internal/domain"
	"github.com/sectordocs/caodex/internal/pdfextract"
	"github.com/sectordocs/caodex/internal/telemetry"
)

// DocumentStore is the pipeline's view of document persistence.
type DocumentStore interface {
	Upsert(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

// ChunkStore persists a document's chunk set.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// TxRepositories exposes stores bound to one database transaction.
type TxRepositories interface {
	Documents() DocumentStore
	Chunks() ChunkStore
}

// TxRunner runs a function within a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

// ObjectStorage stores and retrieves raw PDF bytes.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Embedder maps ordered chunk texts to a parallel ordered list of vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor converts PDF bytes into page-indexed text.
type Extractor interface {
	Extract(data []byte) ([]pdfextract.Page, error)
}

// IngestStatus is the per-document outcome of an ingestion.
type IngestStatus string

const (
	StatusIngested         IngestStatus = "ingested"
	StatusSkippedUnchanged IngestStatus = "skipped_unchanged"
)

// IngestResult reports the outcome of ingesting one raw document.
type IngestResult struct {
	DocumentID string
	Status     IngestStatus
	Chunks     int
}

// Pipeline ingests a raw document end to end: identity, document row,
// storage upload, extraction, chunking, embedding, and the atomic chunk
// replace. Chunking and embedding within one document are sequential;
// concurrency happens across documents (Runner) and across embedding
// batches (the Embedder).
type Pipeline struct {
	docs      DocumentStore
	tx        TxRunner
	storage   ObjectStorage
	extractor Extractor
	embedder  Embedder
	chunkCfg  ChunkConfig
	bucket    string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(
	docs DocumentStore,
	tx TxRunner,
	storage ObjectStorage,
	extractor Extractor,
	embedder Embedder,
	chunkCfg ChunkConfig,
	bucket string,
) *Pipeline {
	if chunkCfg.TargetSize <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &Pipeline{
		docs:      docs,
		tx:        tx,
		storage:   storage,
		extractor: extractor,
		embedder:  embedder,
		chunkCfg:  chunkCfg,
		bucket:    bucket,
	}
}

// lockFor returns the mutex serializing ingestion for one document id. Two
// concurrent ingestions of the same id must not interleave their
// delete/insert; ids lock independently so unrelated documents never wait
// on each other.
func (p *Pipeline) lockFor(id string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	l, ok := p.locks[id]
	if !ok {
		l = &sync.Mutex{}
		p.locks[id] = l
	}
	return l
}

// IngestDocument runs the full ingestion for one raw document. Re-running
// with unchanged bytes is a no-op success. Any failure leaves processed_at
// null, which is the recovery signal for a later re-run.
func (p *Pipeline) IngestDocument(ctx context.Context, raw domain.RawDocument) (*IngestResult, error) {
	if len(raw.Bytes) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "raw document has no bytes")
	}
	if raw.Name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "raw document has no name")
	}

	documentID, contentHash := domain.Identify(raw.Name, raw.Bytes)

	ctx, span := telemetry.StartSpan(ctx, "pipeline.ingest", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	lock := p.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := p.docs.GetByID(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("failed to load document %s", documentID), err)
	}

	if existing != nil && !existing.HasChanged(contentHash) && existing.Processed() {
		log.Printf("document %s unchanged, skipping", documentID)
		return &IngestResult{DocumentID: documentID, Status: StatusSkippedUnchanged}, nil
	}

	fileName := raw.FileName
	if fileName == "" {
		fileName = documentID + ".pdf"
	}
	storagePath := documentID + "/" + fileName

	doc := domain.NewDocument(documentID, raw.Name, raw.SourceURL, p.bucket, storagePath, contentHash, int64(len(raw.Bytes)), time.Now().UTC())
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := p.docs.Upsert(ctx, doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("failed to upsert document %s", documentID), err)
	}

	if p.storage != nil {
		if err := p.storage.Put(ctx, storagePath, raw.Bytes, "application/pdf"); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("failed to upload raw bytes for %s", documentID), err)
		}
	}

	count, err := p.process(ctx, doc, raw.Bytes)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	log.Printf("document %s ingested (%d chunks)", documentID, count)
	return &IngestResult{DocumentID: documentID, Status: StatusIngested, Chunks: count}, nil
}

// Reprocess re-runs extraction through chunk replace for an already
// registered document, downloading the raw bytes from object storage. Used
// by the background worker to pick up interrupted ingestions.
func (p *Pipeline) Reprocess(ctx context.Context, doc *domain.Document) (int, error) {
	if p.storage == nil {
		return 0, domain.NewDomainError(domain.ErrCodeInternalError, "object storage not configured")
	}

	lock := p.lockFor(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	data, err := p.storage.Get(ctx, doc.StoragePath)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("failed to download raw bytes for %s", doc.ID), err)
	}

	return p.process(ctx, doc, data)
}

// process extracts, chunks, embeds, and atomically replaces the chunk set,
// then marks the document processed. Callers hold the per-id lock.
func (p *Pipeline) process(ctx context.Context, doc *domain.Document, data []byte) (int, error) {
	pages, err := p.extractor.Extract(data)
	if err != nil {
		return 0, fmt.Errorf("document %s: %w", doc.ID, err)
	}

	records := ChunkPages(pages, p.chunkCfg)
	if len(records) == 0 {
		return 0, domain.NewDomainError(domain.ErrCodeExtraction, fmt.Sprintf("document %s yielded no text", doc.ID))
	}

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		var embErr *domain.EmbeddingError
		if errors.As(err, &embErr) {
			embErr.DocumentID = doc.ID
			return 0, embErr
		}
		return 0, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	if len(vectors) != len(texts) {
		return 0, domain.NewDomainError(domain.ErrCodeEmbedding, fmt.Sprintf("document %s: embedder returned %d vectors for %d chunks", doc.ID, len(vectors), len(texts)))
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(records))
	for i, rec := range records {
		chunk := domain.Chunk{
			ID:         domain.ChunkID(doc.ID, rec.Index),
			DocumentID: doc.ID,
			ChunkIndex: rec.Index,
			Content:    rec.Content,
			Embedding:  vectors[i],
			PageStart:  rec.PageStart,
			PageEnd:    rec.PageEnd,
			CharStart:  rec.CharStart,
			CharEnd:    rec.CharEnd,
			CreatedAt:  now,
		}
		if err := domain.ValidateChunk(&chunk); err != nil {
			return 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, fmt.Sprintf("document %s chunk %d", doc.ID, rec.Index), err)
		}
		chunks[i] = chunk
	}

	// Delete, insert, and the processed_at flip commit together: a crash
	// anywhere in between leaves processed_at null and the old chunk set
	// intact.
	err = p.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		return repos.Documents().MarkProcessed(ctx, doc.ID, now)
	})
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("failed to persist chunks for %s", doc.ID), err)
	}

	return len(chunks), nil
}

// DocumentFailure names one failed document in a run.
type DocumentFailure struct {
	DocumentID string
	ErrorKind  string
	Err        error
}

// RunSummary reports per-document outcomes of one ingestion run.
type RunSummary struct {
	RunID            string
	Ingested         int
	SkippedUnchanged int
	Failed           int
	Failures         []DocumentFailure
}

// Runner executes an ingestion run over a batch of raw documents with a
// bounded worker pool. Documents fail independently: one document's error
// never aborts the batch. Cancelling the context stops picking up new
// documents while in-flight ingestions finish or fail cleanly.
type Runner struct {
	pipeline    *Pipeline
	concurrency int
}

// NewRunner creates a new Runner instance.
func NewRunner(pipeline *Pipeline, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{pipeline: pipeline, concurrency: concurrency}
}

// Run ingests every raw document and returns the per-document summary.
func (r *Runner) Run(ctx context.Context, raws []domain.RawDocument) *RunSummary {
	summary := &RunSummary{RunID: uuid.NewString()}

	var mu sync.Mutex
	seen := make(map[string]string) // document id -> content hash within this run

	fail := func(documentID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Failed++
		summary.Failures = append(summary.Failures, DocumentFailure{
			DocumentID: documentID,
			ErrorKind:  domain.ErrorCode(err),
			Err:        err,
		})
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for _, raw := range raws {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			documentID, contentHash := domain.Identify(raw.Name, raw.Bytes)

			mu.Lock()
			prevHash, dup := seen[documentID]
			if !dup {
				seen[documentID] = contentHash
			}
			mu.Unlock()

			if dup && prevHash != contentHash {
				fail(documentID, &domain.IdentityConflictError{
					DocumentID:   documentID,
					ExistingHash: prevHash,
					NewHash:      contentHash,
				})
				return nil
			}

			res, err := r.pipeline.IngestDocument(ctx, raw)
			if err != nil {
				log.Printf("ingest failed for %s: %v", documentID, err)
				fail(documentID, err)
				return nil
			}

			mu.Lock()
			switch res.Status {
			case StatusSkippedUnchanged:
				summary.SkippedUnchanged++
			default:
				summary.Ingested++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].DocumentID < summary.Failures[j].DocumentID
	})

	log.Printf("run %s: ingested=%d skipped=%d failed=%d",
		summary.RunID, summary.Ingested, summary.SkippedUnchanged, summary.Failed)
	return summary
}
