package handlers

import (
	"log/slog"
	"net/http"

	"github.com/roommatch/matcher/internal/api/response"
)

// CorpusInfo reports the loaded corpus shape.
type CorpusInfo interface {
	Len() int
	Dimensions() int
}

// HealthHandler handles liveness and readiness checks.
type HealthHandler struct {
	corpus CorpusInfo
}

// NewHealthHandler creates a new health handler. corpus may be nil, in which
// case readiness always fails.
func NewHealthHandler(corpus CorpusInfo) *HealthHandler {
	return &HealthHandler{corpus: corpus}
}

// ReadyResponse is the body for GET /ready.
type ReadyResponse struct {
	Status     string `json:"status"`
	Profiles   int    `json:"profiles"`
	Dimensions int    `json:"dimensions"`
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health check response", "error", err)
	}
}

// Ready handles GET /ready. An empty corpus is reported as not ready since
// every search against it fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if h.corpus == nil {
		response.RespondServiceUnavailable(w, "corpus not loaded")

		return
	}

	if h.corpus.Len() == 0 {
		response.RespondServiceUnavailable(w, "corpus is empty")

		return
	}

	response.RespondJSON(w, http.StatusOK, ReadyResponse{
		Status:     "ready",
		Profiles:   h.corpus.Len(),
		Dimensions: h.corpus.Dimensions(),
	})
}
