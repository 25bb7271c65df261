package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sectordocs/caodex/internal/api"
	"github.com/sectordocs/caodex/internal/domain"
	"github.com/sectordocs/caodex/internal/service"
)

const defaultMatchCount = 5

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*domain.ChunkMatch, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query      string    `json:"query"`
	Vector     []float32 `json:"vector,omitempty"`
	MatchCount int       `json:"match_count"`
	DocumentID string    `json:"document_id,omitempty"`
}

type ChunkMatchResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	PageStart  int     `json:"page_start"`
	PageEnd    int     `json:"page_end"`
	Distance   float64 `json:"distance"`
}

type SearchResponse struct {
	Matches []*ChunkMatchResponse `json:"matches"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" && len(req.Vector) == 0 {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.MatchCount == 0 {
		req.MatchCount = defaultMatchCount
	}

	matches, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:      req.Query,
		Vector:     req.Vector,
		MatchCount: req.MatchCount,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ChunkMatchResponse, len(matches))
	for i, m := range matches {
		responses[i] = &ChunkMatchResponse{
			ChunkID:    m.ChunkID,
			DocumentID: m.DocumentID,
			ChunkIndex: m.ChunkIndex,
			Content:    m.Content,
			PageStart:  m.PageStart,
			PageEnd:    m.PageEnd,
			Distance:   m.Distance,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Matches: responses})
}
