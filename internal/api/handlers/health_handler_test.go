package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCorpus struct {
	n, dims int
}

func (f fakeCorpus) Len() int        { return f.n }
func (f fakeCorpus) Dimensions() int { return f.dims }

func TestHealthHandler_Check(t *testing.T) {
	rec := httptest.NewRecorder()

	NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		corpus     CorpusInfo
		wantStatus int
		wantBody   string
	}{
		{
			name:       "loaded corpus",
			corpus:     fakeCorpus{n: 120, dims: 384},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","profiles":120,"dimensions":384}`,
		},
		{
			name:       "empty corpus",
			corpus:     fakeCorpus{},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "no corpus",
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			NewHealthHandler(tt.corpus).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}
