package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "debug")
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")

	logger.InfoContext(ctx, "hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "request_id=req-123")
	assert.Contains(t, out, "k=v")
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, "warn")
	logger.Info("dropped")

	assert.Empty(t, buf.String())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "success", NormalizeOutcome("success"))
	assert.Equal(t, "timeout", NormalizeOutcome("timeout"))
	assert.Equal(t, "other", NormalizeOutcome("exploded"))

	assert.Equal(t, "retrieve", NormalizeStage("retrieve"))
	assert.Equal(t, "unknown", NormalizeStage("rerank"))

	assert.Equal(t, "query_embedding", NormalizeCacheName("query_embedding"))
	assert.Equal(t, "other", NormalizeCacheName("anything"))

	assert.Equal(t, "dimension_mismatch", NormalizeReason("dimension_mismatch", AllowedEmbeddingReasons))
	assert.Equal(t, "other", NormalizeReason("nope", AllowedEmbeddingReasons))

	assert.Equal(t, "2xx", NormalizeStatusClass(200))
	assert.Equal(t, "4xx", NormalizeStatusClass(413))
	assert.Equal(t, "5xx", NormalizeStatusClass(500))
}

func TestNewMetrics_NilMeter(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func TestPipelineMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.Pipeline.RecordSearch(ctx, OutcomeSuccess, 0)
	metrics.Pipeline.RecordRationale(ctx, OutcomeError, 0)
	metrics.Pipeline.RecordRationale(ctx, OutcomeError, 0)
	metrics.Pipeline.AddRationalesInFlight(3)
	metrics.Pipeline.AddRationalesInFlight(-1)
	metrics.Pipeline.SetCorpusProfiles(42)
	metrics.Cache.RecordHit(ctx, CacheQueryEmbedding)

	got := collect(t, reader)

	searches, ok := got[MetricNameSearches].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, searches.DataPoints, 1)
	assert.Equal(t, int64(1), searches.DataPoints[0].Value)

	rationales, ok := got[MetricNameRationales].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rationales.DataPoints, 1)
	assert.Equal(t, int64(2), rationales.DataPoints[0].Value)

	inFlight, ok := got[MetricNameRationalesInFlight].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, inFlight.DataPoints, 1)
	assert.Equal(t, int64(2), inFlight.DataPoints[0].Value)

	corpus, ok := got[MetricNameCorpusProfiles].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(42), corpus.DataPoints[0].Value)

	_, ok = got[MetricNameCacheHits]
	assert.True(t, ok)
}
