package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Query string `json:"query" validate:"max=10,no_null_bytes"`
	Name  string `json:"name"  validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"query":"q","name":"n"}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "unknown field", body: `{"query":"q","extra":1}`, wantErr: true},
		{name: "malformed", body: `{"query":`, wantErr: true},
		{name: "trailing object", body: `{"query":"q"}{"query":"r"}`, wantErr: true},
		{name: "wrong type", body: `{"query":5}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))

			var dst sample

			err := DecodeJSON(req, &dst)
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "q", dst.Query)
		})
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(""))

	var dst sample
	assert.ErrorIs(t, DecodeJSON(req, &dst), ErrEmptyBody)
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Query: "ok", Name: "n"}))

	err := ValidateStruct(sample{Query: "a\x00b", Name: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query must not contain NULL bytes")

	err = ValidateStruct(sample{Query: strings.Repeat("x", 11)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query must be at most 10 characters")
	assert.Contains(t, err.Error(), "name is required")

	details := GetValidationErrorDetails(err)
	assert.Len(t, details, 2)
}

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()

	RespondValidationError(rec, ValidateStruct(sample{}))

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail":"validation failed: name is required"`)
	assert.Contains(t, rec.Body.String(), `"location":"name"`)
}
