package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sectordocs/caodex/internal/domain"
)

// dbtx abstracts pgxpool.Pool and pgx.Tx so repositories can run inside or
// outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentRepository handles persistence of document rows.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx dbtx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

// Upsert inserts or refreshes a document row. Refreshing resets
// processed_at to null: changed content must be re-chunked before the
// document may be considered processed again.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents
			(document_id, cao_name, source_url, storage_bucket, storage_path, content_hash, byte_size, ingested_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL)
		 ON CONFLICT (document_id) DO UPDATE SET
			cao_name = EXCLUDED.cao_name,
			source_url = EXCLUDED.source_url,
			storage_bucket = EXCLUDED.storage_bucket,
			storage_path = EXCLUDED.storage_path,
			content_hash = EXCLUDED.content_hash,
			byte_size = EXCLUDED.byte_size,
			ingested_at = EXCLUDED.ingested_at,
			processed_at = NULL`,
		d.ID, d.Name, nullableString(d.SourceURL), d.StorageBucket, d.StoragePath, d.ContentHash, d.ByteSize, d.IngestedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var sourceURL *string
	err := r.db.QueryRow(ctx,
		`SELECT document_id, cao_name, source_url, storage_bucket, storage_path, content_hash, byte_size, ingested_at, processed_at
		 FROM documents WHERE document_id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &sourceURL, &d.StorageBucket, &d.StoragePath, &d.ContentHash, &d.ByteSize, &d.IngestedAt, &d.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if sourceURL != nil {
		d.SourceURL = *sourceURL
	}
	return &d, nil
}

func (r *DocumentRepository) List(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, cao_name, source_url, storage_bucket, storage_path, content_hash, byte_size, ingested_at, processed_at
		 FROM documents ORDER BY cao_name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// ListUnprocessed returns documents whose chunking has not completed, in
// ingestion order.
func (r *DocumentRepository) ListUnprocessed(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT document_id, cao_name, source_url, storage_bucket, storage_path, content_hash, byte_size, ingested_at, processed_at
		 FROM documents WHERE processed_at IS NULL ORDER BY ingested_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

// MarkProcessed sets the completion flag. It is only called after the
// document's chunk set has been replaced in the same transaction.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET processed_at = $2 WHERE document_id = $1`,
		id, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document row; chunks cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE document_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		var sourceURL *string
		if err := rows.Scan(&d.ID, &d.Name, &sourceURL, &d.StorageBucket, &d.StoragePath, &d.ContentHash, &d.ByteSize, &d.IngestedAt, &d.ProcessedAt); err != nil {
			return nil, err
		}
		if sourceURL != nil {
			d.SourceURL = *sourceURL
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
