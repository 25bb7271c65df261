package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sectordocs/caodex/internal/domain"
)

// DocumentCatalog is the read/delete view of document persistence used by
// the API surface.
type DocumentCatalog interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// StorageAdmin removes stored objects and mints presigned download URLs.
type StorageAdmin interface {
	DeleteObject(ctx context.Context, key string) error
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Documents exposes catalog operations over ingested documents.
type Documents struct {
	catalog DocumentCatalog
	storage StorageAdmin
}

// NewDocuments creates a new Documents service instance.
func NewDocuments(catalog DocumentCatalog, storage StorageAdmin) *Documents {
	return &Documents{catalog: catalog, storage: storage}
}

// Get returns one document by id.
func (s *Documents) Get(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document id is required")
	}
	return s.catalog.GetByID(ctx, id)
}

// List returns all documents ordered by agreement name.
func (s *Documents) List(ctx context.Context) ([]*domain.Document, error) {
	return s.catalog.List(ctx)
}

// Delete removes a document, its chunks (via cascade), and the stored PDF.
// The database row goes first so a storage failure leaves no orphaned
// catalog entry.
func (s *Documents) Delete(ctx context.Context, id string) error {
	doc, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.catalog.Delete(ctx, id); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("failed to delete document %s", id), err)
	}

	if s.storage != nil && doc.StoragePath != "" {
		if err := s.storage.DeleteObject(ctx, doc.StoragePath); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodePersistence, fmt.Sprintf("document %s deleted but stored PDF removal failed", id), err)
		}
	}
	return nil
}

// DownloadURL returns a presigned URL for the document's stored PDF.
func (s *Documents) DownloadURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	doc, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if s.storage == nil {
		return "", domain.NewDomainError(domain.ErrCodeInternalError, "object storage not configured")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	url, err := s.storage.GenerateDownloadURL(ctx, doc.StoragePath, expiry)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, fmt.Sprintf("failed to presign download for %s", id), err)
	}
	return url, nil
}
