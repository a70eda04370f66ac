package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/roommatch/matcher/internal/observability"
)

// knownRoutes bounds the route label on request metrics.
var knownRoutes = map[string]bool{
	"/search":  true,
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// statusRecorder captures the status code and bytes written by the handler.
type statusRecorder struct {
	http.ResponseWriter

	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n

	//nolint:wrapcheck // passthrough of the underlying writer
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logging writes one access log line per request and records request metrics
// when metrics is non-nil. It must run inside otelhttp so log lines carry the
// trace context. Health probes log at debug level.
func Logging(logger *slog.Logger, metrics observability.APIMetrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)

			if metrics != nil {
				metrics.RecordRequest(r.Context(), r.Method, normalizeRoute(r.URL.Path), rec.statusCode, duration)
			}

			level := slog.LevelInfo
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.statusCode,
				"bytes", rec.bytes,
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}

// normalizeRoute maps unknown paths to "other" to bound metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}

	return "other"
}
