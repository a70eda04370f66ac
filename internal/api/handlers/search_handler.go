package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roommatch/matcher/internal/api/response"
	"github.com/roommatch/matcher/internal/api/validation"
	"github.com/roommatch/matcher/internal/models"
)

// maxQueryLength bounds the query text; longer queries are rejected with 400.
const maxQueryLength = 2000

// SearchService runs the retrieve and annotate pipeline for one query.
type SearchService interface {
	Search(ctx context.Context, query string) (models.AnnotationOutput, error)
}

// SearchHandler handles POST /search.
type SearchHandler struct {
	service SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search handler. logger may be nil.
func NewSearchHandler(service SearchService, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SearchHandler{service: service, logger: logger}
}

// SearchRequest is the body for POST /search. An empty or blank query is not
// rejected here; the pipeline reports it as a retrieval failure.
type SearchRequest struct {
	Query string `json:"query" validate:"max=2000,no_null_bytes"`
}

// SearchResponse is the success body for POST /search.
type SearchResponse struct {
	Status  string             `json:"status"`
	Query   string             `json:"query"`
	Results []SearchResultItem `json:"results"`
}

// SearchResultItem is one ranked profile. Similarity holds the generated
// rationale or an "Error: <cause>" marker.
type SearchResultItem struct {
	Profile    models.Profile `json:"profile"`
	Score      float64        `json:"score"`
	Similarity string         `json:"similarity"`
}

// Search handles POST /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest

	if err := validation.DecodeJSON(r, &req); err != nil {
		if errors.Is(err, validation.ErrEmptyBody) {
			response.RespondBadRequest(w, "request body is required")

			return
		}

		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	out, err := h.service.Search(r.Context(), req.Query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "search failed", "error", err)
		response.RespondInternalServerError(w, err.Error())

		return
	}

	response.RespondJSON(w, http.StatusOK, toSearchResponse(out))
}

func toSearchResponse(out models.AnnotationOutput) SearchResponse {
	items := make([]SearchResultItem, len(out.Results))
	for i, res := range out.Results {
		items[i] = SearchResultItem{
			Profile:    res.Profile,
			Score:      res.Score,
			Similarity: res.Rationale,
		}
	}

	return SearchResponse{
		Status:  "success",
		Query:   out.Query,
		Results: items,
	}
}
