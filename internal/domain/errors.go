package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeExtraction    = "EXTRACTION_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeConflict      = "IDENTITY_CONFLICT"
	ErrCodePersistence   = "PERSISTENCE_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
)

// ErrorCode extracts the domain error code from err, or INTERNAL_ERROR when
// err carries no DomainError.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var embErr *EmbeddingError
	if errors.As(err, &embErr) {
		return ErrCodeEmbedding
	}
	var conflictErr *IdentityConflictError
	if errors.As(err, &conflictErr) {
		return ErrCodeConflict
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}

// EmbeddingError reports an embedding batch that exhausted its retry budget.
// ChunkIndices are the positions of the failed batch's texts in the
// document's chunk ordering, so no chunk is ever dropped silently.
type EmbeddingError struct {
	DocumentID   string
	ChunkIndices []int
	Err          error
}

func (e *EmbeddingError) Error() string {
	indices := make([]string, len(e.ChunkIndices))
	for i, idx := range e.ChunkIndices {
		indices[i] = fmt.Sprintf("%d", idx)
	}
	msg := fmt.Sprintf("[%s] embedding failed for chunks [%s]", ErrCodeEmbedding, strings.Join(indices, ","))
	if e.DocumentID != "" {
		msg = fmt.Sprintf("[%s] embedding failed for document %s chunks [%s]", ErrCodeEmbedding, e.DocumentID, strings.Join(indices, ","))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// IdentityConflictError reports two distinct raw inputs resolving to the
// same document id with different content hashes. It is surfaced rather
// than silently overwritten; resolving it is an operator decision.
type IdentityConflictError struct {
	DocumentID   string
	ExistingHash string
	NewHash      string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("[%s] document id %q claimed by two inputs with different content (hashes %.12s vs %.12s)",
		ErrCodeConflict, e.DocumentID, e.ExistingHash, e.NewHash)
}
