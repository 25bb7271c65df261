package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sectordocs/caodex/internal/api"
	"github.com/sectordocs/caodex/internal/domain"
	"github.com/sectordocs/caodex/internal/service"
)

// maxUploadBytes caps a single PDF upload.
const maxUploadBytes = 50 << 20

type IngestService interface {
	IngestDocument(ctx context.Context, raw domain.RawDocument) (*service.IngestResult, error)
}

type DocumentService interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.Document, error)
	Delete(ctx context.Context, id string) error
	DownloadURL(ctx context.Context, id string, expiry time.Duration) (string, error)
}

type DocumentHandler struct {
	ingest IngestService
	docs   DocumentService
}

func NewDocumentHandler(ingest IngestService, docs DocumentService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SourceURL   string `json:"source_url,omitempty"`
	ContentHash string `json:"content_hash"`
	ByteSize    int64  `json:"byte_size"`
	IngestedAt  string `json:"ingested_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:          d.ID,
		Name:        d.Name,
		SourceURL:   d.SourceURL,
		ContentHash: d.ContentHash,
		ByteSize:    d.ByteSize,
		IngestedAt:  d.IngestedAt.Format(time.RFC3339),
	}
	if d.ProcessedAt != nil {
		resp.ProcessedAt = d.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
}

// Upload ingests one PDF posted as multipart form data. Fields: "file"
// (the PDF) and "name" (the agreement name); "source_url" is optional.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) > maxUploadBytes {
		api.Error(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	raw := domain.RawDocument{
		Name:      name,
		FileName:  header.Filename,
		SourceURL: r.FormValue("source_url"),
		Bytes:     data,
	}

	result, err := h.ingest.IngestDocument(r.Context(), raw)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == service.StatusSkippedUnchanged {
		status = http.StatusOK
	}
	api.Success(w, status, IngestResponse{
		DocumentID: result.DocumentID,
		Status:     string(result.Status),
		Chunks:     result.Chunks,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.docs.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items []*DocumentResponse `json:"items"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{Items: responses})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.docs.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	url, err := h.docs.DownloadURL(r.Context(), id, 15*time.Minute)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{URL: url})
}
