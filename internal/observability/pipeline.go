package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records search pipeline metrics (orchestrator, fan-out, embedding).
// Methods accept ctx for future exemplar support (linking metric samples to trace IDs).
type PipelineMetrics interface {
	RecordSearch(ctx context.Context, outcome string, duration time.Duration)
	RecordStage(ctx context.Context, stage, outcome string, duration time.Duration)
	RecordRationale(ctx context.Context, outcome string, duration time.Duration)
	AddRationalesInFlight(delta int)
	RecordEmbeddingError(ctx context.Context, reason string)
	SetCorpusProfiles(n int)
}

// pipelineMetrics implements PipelineMetrics.
type pipelineMetrics struct {
	searches          metric.Int64Counter
	searchDuration    metric.Float64Histogram
	stageDuration     metric.Float64Histogram
	rationales        metric.Int64Counter
	rationaleDuration metric.Float64Histogram
	embeddingErrors   metric.Int64Counter

	inFlight       atomic.Int64
	corpusProfiles atomic.Int64
}

// NewPipelineMetrics creates PipelineMetrics and registers gauges. Returns (nil, nil) when meter is nil (metrics disabled).
func NewPipelineMetrics(meter metric.Meter) (PipelineMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	searches, err := meter.Int64Counter(
		MetricNameSearches,
		metric.WithDescription("Total search requests by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create searches counter: %w", err)
	}

	searchDuration, err := meter.Float64Histogram(
		MetricNameSearchDuration,
		metric.WithDescription("End-to-end search pipeline duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	stageDuration, err := meter.Float64Histogram(
		MetricNameStageDuration,
		metric.WithDescription("Pipeline stage duration by stage and outcome (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}

	rationales, err := meter.Int64Counter(
		MetricNameRationales,
		metric.WithDescription("Total rationale generation calls by outcome (success, error, timeout)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rationales counter: %w", err)
	}

	rationaleDuration, err := meter.Float64Histogram(
		MetricNameRationaleDuration,
		metric.WithDescription("Rationale generation call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rationale duration histogram: %w", err)
	}

	embeddingErrors, err := meter.Int64Counter(
		MetricNameEmbeddingCallErrors,
		metric.WithDescription("Query embedding failures by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding errors counter: %w", err)
	}

	m := &pipelineMetrics{
		searches:          searches,
		searchDuration:    searchDuration,
		stageDuration:     stageDuration,
		rationales:        rationales,
		rationaleDuration: rationaleDuration,
		embeddingErrors:   embeddingErrors,
	}

	_, err = meter.Int64ObservableGauge(
		MetricNameRationalesInFlight,
		metric.WithDescription("Rationale generation calls currently in flight across all requests"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.inFlight.Load())

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create rationales in flight gauge: %w", err)
	}

	_, err = meter.Int64ObservableGauge(
		MetricNameCorpusProfiles,
		metric.WithDescription("Number of profiles in the loaded corpus"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.corpusProfiles.Load())

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create corpus profiles gauge: %w", err)
	}

	return m, nil
}

func attrOutcome(v string) attribute.KeyValue {
	return attribute.String(AttrOutcome, NormalizeOutcome(v))
}

func (m *pipelineMetrics) RecordSearch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attrOutcome(outcome))
	m.searches.Add(ctx, 1, attrs)
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *pipelineMetrics) RecordStage(ctx context.Context, stage, outcome string, duration time.Duration) {
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrStage, NormalizeStage(stage)),
		attrOutcome(outcome),
	))
}

func (m *pipelineMetrics) RecordRationale(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attrOutcome(outcome))
	m.rationales.Add(ctx, 1, attrs)
	m.rationaleDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *pipelineMetrics) AddRationalesInFlight(delta int) {
	m.inFlight.Add(int64(delta))
}

func (m *pipelineMetrics) RecordEmbeddingError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedEmbeddingReasons)
	m.embeddingErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (m *pipelineMetrics) SetCorpusProfiles(n int) {
	m.corpusProfiles.Store(int64(n))
}
