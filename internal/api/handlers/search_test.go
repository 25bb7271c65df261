package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sectordocs/caodex/internal/api"
	"github.com/sectordocs/caodex/internal/domain"
	"github.com/sectordocs/caodex/internal/service"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]*domain.ChunkMatch, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChunkMatch), args.Error(1)
}

func searchRequest(t *testing.T, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSearchHandler_Search(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	matches := []*domain.ChunkMatch{
		{ChunkID: "cao-bouw::3", DocumentID: "cao-bouw", ChunkIndex: 3, Content: "vakantiedagen regeling", PageStart: 2, PageEnd: 2, Distance: 0.05},
		{ChunkID: "cao-bouw::7", DocumentID: "cao-bouw", ChunkIndex: 7, Content: "verlof", PageStart: 5, PageEnd: 6, Distance: 0.1},
	}

	mockSvc.On("Search", mock.Anything, service.SearchInput{Query: "vakantiedagen", MatchCount: 2}).
		Return(matches, nil)

	w := httptest.NewRecorder()
	handler.Search(w, searchRequest(t, SearchRequest{Query: "vakantiedagen", MatchCount: 2}))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	items := data["matches"].([]interface{})
	require.Len(t, items, 2)

	first := items[0].(map[string]interface{})
	assert.Equal(t, "cao-bouw::3", first["chunk_id"])
	assert.Equal(t, float64(0.05), first["distance"])

	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_DefaultsMatchCount(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, service.SearchInput{Query: "loon", MatchCount: defaultMatchCount}).
		Return([]*domain.ChunkMatch{}, nil)

	w := httptest.NewRecorder()
	handler.Search(w, searchRequest(t, SearchRequest{Query: "loon"}))

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_EmptyQueryRejected(t *testing.T) {
	handler := NewSearchHandler(new(MockSearchService))

	w := httptest.NewRecorder()
	handler.Search(w, searchRequest(t, SearchRequest{}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_InvalidBody(t *testing.T) {
	handler := NewSearchHandler(new(MockSearchService))

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_EmbeddingFailure(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, mock.Anything).
		Return(nil, &domain.EmbeddingError{ChunkIndices: []int{0}})

	w := httptest.NewRecorder()
	handler.Search(w, searchRequest(t, SearchRequest{Query: "loon", MatchCount: 3}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSearchHandler_DocumentFilterForwarded(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, service.SearchInput{Query: "loon", MatchCount: 3, DocumentID: "cao-bouw"}).
		Return([]*domain.ChunkMatch{}, nil)

	w := httptest.NewRecorder()
	handler.Search(w, searchRequest(t, SearchRequest{Query: "loon", MatchCount: 3, DocumentID: "cao-bouw"}))

	assert.Equal(t, http.StatusOK, w.Code)

	// No matches still yields an empty array, not null.
	var resp api.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.NotNil(t, data["matches"])

	mockSvc.AssertExpectations(t)
}
