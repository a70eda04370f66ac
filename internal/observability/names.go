// Package observability provides structured logging, OpenTelemetry metrics and tracing for the matcher API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRequests             = "matcher_http_requests_total"
	MetricNameRequestDuration      = "matcher_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge  = "matcher_request_body_too_large_total"
	MetricNameSearches             = "matcher_searches_total"
	MetricNameSearchDuration       = "matcher_search_duration_seconds"
	MetricNameStageDuration        = "matcher_pipeline_stage_duration_seconds"
	MetricNameRationales           = "matcher_rationales_total"
	MetricNameRationaleDuration    = "matcher_rationale_duration_seconds"
	MetricNameRationalesInFlight   = "matcher_rationales_in_flight"
	MetricNameCacheHits            = "matcher_cache_hits_total"
	MetricNameCacheMisses          = "matcher_cache_misses_total"
	MetricNameCorpusProfiles       = "matcher_corpus_profiles"
	MetricNameEmbeddingCallErrors  = "matcher_embedding_errors_total"
	durationHistogramInstrumentKey = "matcher_*_duration_seconds"
)

// Attribute keys.
const (
	AttrOutcome     = "outcome"
	AttrStage       = "stage"
	AttrReason      = "reason"
	AttrCache       = "cache"
	AttrMethod      = "method"
	AttrRoute       = "route"
	AttrStatusClass = "status_class"
)

// Pipeline stages.
const (
	StageRetrieve = "retrieve"
	StageAnnotate = "annotate"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Cache names.
const (
	CacheQueryEmbedding = "query_embedding"
)

// AllowedOutcomes for search, stage and rationale metrics.
var AllowedOutcomes = map[string]bool{
	OutcomeSuccess: true,
	OutcomeError:   true,
	OutcomeTimeout: true,
}

// AllowedStages for matcher_pipeline_stage_duration_seconds.
var AllowedStages = map[string]bool{
	StageRetrieve: true,
	StageAnnotate: true,
}

// AllowedEmbeddingReasons for matcher_embedding_errors_total.
var AllowedEmbeddingReasons = map[string]bool{
	"provider_error":     true,
	"timeout":            true,
	"dimension_mismatch": true,
}

// AllowedCacheNames for cache hit/miss metrics.
var AllowedCacheNames = map[string]bool{
	CacheQueryEmbedding: true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeOutcome returns outcome if in AllowedOutcomes, otherwise "other".
func NormalizeOutcome(outcome string) string {
	return NormalizeReason(outcome, AllowedOutcomes)
}

// NormalizeStage returns stage if in AllowedStages, otherwise "unknown".
func NormalizeStage(stage string) string {
	if AllowedStages[stage] {
		return stage
	}

	return "unknown"
}

// NormalizeCacheName returns name if in AllowedCacheNames, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}

// NormalizeStatusClass maps an HTTP status code to 2xx/3xx/4xx/5xx.
func NormalizeStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
