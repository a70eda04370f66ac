package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
	"github.com/roommatch/matcher/internal/observability"
)

// DefaultMaxConcurrency is the number of rationale calls in flight per request.
const DefaultMaxConcurrency = 5

// ErrorMarkerPrefix starts the rationale of a candidate whose generation failed.
const ErrorMarkerPrefix = "Error: "

// RationaleGenerator produces the rationale for one candidate.
// Implemented by rationale.Generator.
type RationaleGenerator interface {
	Generate(ctx context.Context, query string, profile models.Profile) (string, error)
}

// workerPool is the subset of *ants.Pool the annotator needs.
type workerPool interface {
	Submit(task func()) error
	Release()
}

// Annotator runs one rationale call per candidate on a bounded worker pool and
// reassembles the results in candidate order. A failed call only affects its own
// candidate, whose rationale becomes an error marker.
type Annotator struct {
	generator      RationaleGenerator
	maxConcurrency int
	metrics        observability.PipelineMetrics
	logger         *slog.Logger
	newPool        func(size int) (workerPool, error)
}

// AnnotatorOption configures an Annotator.
type AnnotatorOption func(*Annotator)

// WithMaxConcurrency caps simultaneous rationale calls per Annotate. Non-positive values keep the default.
func WithMaxConcurrency(n int) AnnotatorOption {
	return func(a *Annotator) {
		if n > 0 {
			a.maxConcurrency = n
		}
	}
}

// WithAnnotatorMetrics sets pipeline metrics. nil disables recording.
func WithAnnotatorMetrics(m observability.PipelineMetrics) AnnotatorOption {
	return func(a *Annotator) {
		a.metrics = m
	}
}

// WithAnnotatorLogger sets the logger.
func WithAnnotatorLogger(logger *slog.Logger) AnnotatorOption {
	return func(a *Annotator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnnotator creates an Annotator.
func NewAnnotator(generator RationaleGenerator, opts ...AnnotatorOption) *Annotator {
	a := &Annotator{
		generator:      generator,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.newPool == nil {
		a.newPool = a.antsPool
	}

	return a
}

func (a *Annotator) antsPool(size int) (workerPool, error) {
	pool, err := ants.NewPool(size,
		ants.WithDisablePurge(true),
		ants.WithPanicHandler(func(p any) {
			a.logger.Error("annotate: worker panic escaped task", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return pool, nil
}

// Annotate returns one result per candidate, in the same order. It blocks until
// every call has settled. The only error is *apperrors.AnnotationError, returned
// when the fan-out itself cannot run.
func (a *Annotator) Annotate(ctx context.Context, query string, candidates []models.Candidate) ([]models.AnnotatedResult, error) {
	results := make([]models.AnnotatedResult, len(candidates))
	if len(candidates) == 0 {
		return results, nil
	}

	pool, err := a.newPool(min(a.maxConcurrency, len(candidates)))
	if err != nil {
		return nil, apperrors.NewAnnotationError("start worker pool", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup

	for i, cand := range candidates {
		wg.Add(1)

		// Submit blocks while every worker is busy, which is what queues the remaining candidates.
		err := pool.Submit(func() {
			defer wg.Done()

			results[i] = a.annotateOne(ctx, query, cand)
		})
		if err != nil {
			wg.Done()
			wg.Wait()

			return nil, apperrors.NewAnnotationError(fmt.Sprintf("submit candidate %d", i), err)
		}
	}

	wg.Wait()

	return results, nil
}

func (a *Annotator) annotateOne(ctx context.Context, query string, cand models.Candidate) (res models.AnnotatedResult) {
	res = models.AnnotatedResult{Profile: cand.Profile, Score: cand.Score}

	ctx, span := observability.StartSpan(ctx, observability.SpanRationale,
		attribute.String("profile.id", cand.Profile.ID),
		attribute.Int("candidate.index", cand.Index),
	)

	if a.metrics != nil {
		a.metrics.AddRationalesInFlight(1)
		defer a.metrics.AddRationalesInFlight(-1)
	}

	start := time.Now()

	var err error

	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewGenerationError(cand.Profile.ID, fmt.Errorf("panic: %v", r))
			res.Rationale = ErrorMarker(err)
			res.Err = err
		}

		observability.EndSpan(span, err)

		if a.metrics != nil {
			a.metrics.RecordRationale(ctx, rationaleOutcome(err), time.Since(start))
		}
	}()

	text, err := a.generator.Generate(ctx, query, cand.Profile)
	if err != nil {
		a.logger.WarnContext(ctx, "annotate: rationale failed",
			"profile_id", cand.Profile.ID,
			"candidate_index", cand.Index,
			"error", err,
		)

		res.Rationale = ErrorMarker(err)
		res.Err = err

		return res
	}

	res.Rationale = text

	return res
}

// ErrorMarker renders a failed generation as the rationale shown to clients.
func ErrorMarker(err error) string {
	return ErrorMarkerPrefix + err.Error()
}

func rationaleOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeError
	}
}
