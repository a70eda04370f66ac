package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
	"github.com/roommatch/matcher/internal/observability"
	"github.com/roommatch/matcher/internal/similarity"
	"github.com/roommatch/matcher/pkg/cache"
)

// DefaultTopK is the number of candidates retrieved per query.
const DefaultTopK = 5

// Sentinel errors for search (wrapped in *apperrors.RetrievalError).
var (
	ErrEmptyQuery  = errors.New("query is required and must be non-empty")
	ErrEmptyCorpus = errors.New("corpus is empty")
)

// Retriever ranks corpus profiles against a query vector. Implemented by similarity.Searcher.
type Retriever interface {
	Len() int
	Search(query models.EmbeddingVector, k int) ([]models.Candidate, error)
}

// CandidateAnnotator attaches rationales to candidates. Implemented by Annotator.
type CandidateAnnotator interface {
	Annotate(ctx context.Context, query string, candidates []models.Candidate) ([]models.AnnotatedResult, error)
}

// SearchService runs the two-stage pipeline RETRIEVE -> ANNOTATE -> DONE.
// There are no loops or backward transitions; a failed stage ends the run.
type SearchService struct {
	embeddingClient EmbeddingClient
	retriever       Retriever
	annotator       CandidateAnnotator
	topK            int
	queryCache      *cache.Loader[[]float32]
	cacheMetrics    observability.CacheMetrics
	metrics         observability.PipelineMetrics
	logger          *slog.Logger
}

// SearchServiceParams configures SearchService. QueryCache and the metrics may be nil.
type SearchServiceParams struct {
	EmbeddingClient EmbeddingClient
	Retriever       Retriever
	Annotator       CandidateAnnotator
	TopK            int
	QueryCache      *cache.Loader[[]float32]
	CacheMetrics    observability.CacheMetrics
	Metrics         observability.PipelineMetrics
	Logger          *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	return &SearchService{
		embeddingClient: p.EmbeddingClient,
		retriever:       p.Retriever,
		annotator:       p.Annotator,
		topK:            topK,
		queryCache:      p.QueryCache,
		cacheMetrics:    p.CacheMetrics,
		metrics:         p.Metrics,
		logger:          logger,
	}
}

// Search runs the pipeline for query. Results are in descending score order with
// scores rounded to three decimals. Errors are *apperrors.RetrievalError or
// *apperrors.AnnotationError; per-candidate generation failures are not errors.
func (s *SearchService) Search(ctx context.Context, query string) (models.AnnotationOutput, error) {
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, observability.SpanSearch)

	out, err := s.search(ctx, query)

	observability.EndSpan(span, err)

	if s.metrics != nil {
		s.metrics.RecordSearch(ctx, outcome(err), time.Since(start))
	}

	return out, err
}

func (s *SearchService) search(ctx context.Context, query string) (models.AnnotationOutput, error) {
	retrieved, err := s.retrieve(ctx, query)
	if err != nil {
		return models.AnnotationOutput{}, err
	}

	annotated, err := s.annotate(ctx, retrieved)
	if err != nil {
		return models.AnnotationOutput{}, err
	}

	for i := range annotated.Results {
		annotated.Results[i].Score = RoundScore(annotated.Results[i].Score)
	}

	return annotated, nil
}

// retrieve is the RETRIEVE stage: embed the query and pick the top K candidates.
func (s *SearchService) retrieve(ctx context.Context, query string) (out models.RetrievalOutput, err error) {
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, observability.SpanRetrieve, attribute.Int("search.top_k", s.topK))

	defer func() {
		observability.EndSpan(span, err)

		if s.metrics != nil {
			s.metrics.RecordStage(ctx, observability.StageRetrieve, outcome(err), time.Since(start))
		}
	}()

	query = NormalizeQuery(query)
	if query == "" {
		return out, apperrors.NewRetrievalError("", ErrEmptyQuery)
	}

	if s.retriever.Len() == 0 {
		return out, apperrors.NewRetrievalError("", ErrEmptyCorpus)
	}

	embedding, err := s.embedQuery(ctx, query)
	if err != nil {
		s.recordEmbeddingError(ctx, err)
		s.logger.ErrorContext(ctx, "search: create embedding failed", "error", err)

		return out, apperrors.NewRetrievalError("embed query", err)
	}

	candidates, err := s.retriever.Search(embedding, s.topK)
	if err != nil {
		if errors.Is(err, similarity.ErrDimensionMismatch) {
			s.recordEmbeddingError(ctx, err)
		}

		s.logger.ErrorContext(ctx, "search: similarity search failed", "error", err)

		return out, apperrors.NewRetrievalError("similarity search", err)
	}

	span.SetAttributes(attribute.Int("search.candidates", len(candidates)))

	return models.RetrievalOutput{Query: query, Candidates: candidates}, nil
}

// annotate is the ANNOTATE stage.
func (s *SearchService) annotate(ctx context.Context, in models.RetrievalOutput) (out models.AnnotationOutput, err error) {
	start := time.Now()

	ctx, span := observability.StartSpan(ctx, observability.SpanAnnotate, attribute.Int("search.candidates", len(in.Candidates)))

	defer func() {
		observability.EndSpan(span, err)

		if s.metrics != nil {
			s.metrics.RecordStage(ctx, observability.StageAnnotate, outcome(err), time.Since(start))
		}
	}()

	results, err := s.annotator.Annotate(ctx, in.Query, in.Candidates)
	if err != nil {
		s.logger.ErrorContext(ctx, "search: annotate failed", "error", err)

		if !errors.Is(err, apperrors.ErrAnnotation) {
			err = apperrors.NewAnnotationError("", err)
		}

		return out, err
	}

	if len(results) != len(in.Candidates) {
		err = apperrors.NewAnnotationError(
			fmt.Sprintf("got %d results for %d candidates", len(results), len(in.Candidates)), nil)

		return out, err
	}

	failed := 0

	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}

	span.SetAttributes(attribute.Int("search.rationales_failed", failed))

	return models.AnnotationOutput{Query: in.Query, Results: results}, nil
}

func (s *SearchService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache == nil {
		return s.createEmbedding(ctx, query)
	}

	vec, hit, err := s.queryCache.Get(ctx, query, s.createEmbedding)
	if err != nil {
		//nolint:wrapcheck // already wrapped by createEmbedding
		return nil, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, observability.CacheQueryEmbedding)
		} else {
			s.cacheMetrics.RecordMiss(ctx, observability.CacheQueryEmbedding)
		}
	}

	return vec, nil
}

func (s *SearchService) createEmbedding(ctx context.Context, query string) ([]float32, error) {
	vec, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}

	return vec, nil
}

func (s *SearchService) recordEmbeddingError(ctx context.Context, err error) {
	if s.metrics == nil {
		return
	}

	reason := "provider_error"

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(err, similarity.ErrDimensionMismatch):
		reason = "dimension_mismatch"
	}

	s.metrics.RecordEmbeddingError(ctx, reason)
}

// NormalizeQuery trims the query and collapses internal whitespace runs to one space.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// RoundScore rounds a similarity score to three decimal places.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeError
	}
}
