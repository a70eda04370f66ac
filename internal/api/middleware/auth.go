package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/roommatch/matcher/internal/api/response"
)

// APIKeyHeader is the alternative header for clients that cannot set Authorization.
const APIKeyHeader = "X-API-Key"

// Auth validates the API key from "Authorization: Bearer <key>" or X-API-Key.
// An empty apiKey disables the check.
func Auth(apiKey string) func(http.Handler) http.Handler {
	if apiKey == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	expected := []byte(apiKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := extractAPIKey(r)
			if !ok {
				response.RespondUnauthorized(w, "Missing API key. Expected: Authorization: Bearer <api-key>")

				return
			}

			if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
				response.RespondUnauthorized(w, "Invalid API key")

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) (string, bool) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	scheme, key, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	key = strings.TrimSpace(key)

	return key, key != ""
}
