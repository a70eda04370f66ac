package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
	"github.com/roommatch/matcher/internal/service"
)

type mockSearchService struct {
	searchFunc func(ctx context.Context, query string) (models.AnnotationOutput, error)
}

func (m *mockSearchService) Search(ctx context.Context, query string) (models.AnnotationOutput, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query)
	}

	return models.AnnotationOutput{Query: query}, nil
}

func doSearch(t *testing.T, svc SearchService, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "http://test/search", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	NewSearchHandler(svc, nil).Search(rec, req)

	return rec
}

func TestSearchHandler_Search(t *testing.T) {
	t.Run("success returns ranked results with rationales", func(t *testing.T) {
		mock := &mockSearchService{
			searchFunc: func(_ context.Context, query string) (models.AnnotationOutput, error) {
				assert.Equal(t, "quiet room near campus", query)

				return models.AnnotationOutput{
					Query: query,
					Results: []models.AnnotatedResult{
						{
							Profile: models.Profile{
								ID: "7", RawProfileText: "quiet flat",
								Attributes: map[string]any{"id": 7, "raw_profile_text": "quiet flat", "city": "Lahore"},
							},
							Score:     0.913,
							Rationale: "Quiet and close to campus.",
						},
						{
							Profile: models.Profile{
								ID: "2", RawProfileText: "shared room",
								Attributes: map[string]any{"id": 2, "raw_profile_text": "shared room"},
							},
							Score:     0.5,
							Rationale: "Error: context deadline exceeded",
							Err:       context.DeadlineExceeded,
						},
					},
				}, nil
			},
		}

		rec := doSearch(t, mock, `{"query":"quiet room near campus"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{
			"status": "success",
			"query": "quiet room near campus",
			"results": [
				{"profile": {"id": 7, "raw_profile_text": "quiet flat", "city": "Lahore"},
				 "score": 0.913, "similarity": "Quiet and close to campus."},
				{"profile": {"id": 2, "raw_profile_text": "shared room"},
				 "score": 0.5, "similarity": "Error: context deadline exceeded"}
			]
		}`, rec.Body.String())
	})

	t.Run("no results encodes an empty array", func(t *testing.T) {
		rec := doSearch(t, &mockSearchService{}, `{"query":"q"}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []any{}, body["results"])
	})

	t.Run("retrieval failure returns 500 with detail", func(t *testing.T) {
		mock := &mockSearchService{
			searchFunc: func(context.Context, string) (models.AnnotationOutput, error) {
				return models.AnnotationOutput{}, apperrors.NewRetrievalError("", service.ErrEmptyQuery)
			},
		}

		rec := doSearch(t, mock, `{"query":"   "}`)

		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "retrieval failed: query is required and must be non-empty", body["detail"])
	})

	t.Run("annotation failure returns 500 with detail", func(t *testing.T) {
		mock := &mockSearchService{
			searchFunc: func(context.Context, string) (models.AnnotationOutput, error) {
				return models.AnnotationOutput{}, apperrors.NewAnnotationError("start worker pool", errors.New("no capacity"))
			},
		}

		rec := doSearch(t, mock, `{"query":"q"}`)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "annotation failed: start worker pool: no capacity")
	})

	t.Run("missing query field reaches the pipeline", func(t *testing.T) {
		called := false
		mock := &mockSearchService{
			searchFunc: func(_ context.Context, query string) (models.AnnotationOutput, error) {
				called = true

				assert.Empty(t, query)

				return models.AnnotationOutput{}, apperrors.NewRetrievalError("", service.ErrEmptyQuery)
			},
		}

		rec := doSearch(t, mock, `{}`)

		assert.True(t, called)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestSearchHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "malformed json", body: `{"query":`},
		{name: "wrong type", body: `{"query":42}`},
		{name: "unknown field", body: `{"query":"q","topK":3}`},
		{name: "null byte", body: `{"query":"a\u0000b"}`},
		{name: "too long", body: `{"query":"` + strings.Repeat("x", maxQueryLength+1) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockSearchService{
				searchFunc: func(context.Context, string) (models.AnnotationOutput, error) {
					t.Fatal("service must not be called")

					return models.AnnotationOutput{}, nil
				},
			}

			rec := doSearch(t, mock, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}
