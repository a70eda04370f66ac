package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/roommatch/matcher/internal/api/handlers"
	"github.com/roommatch/matcher/internal/api/middleware"
	"github.com/roommatch/matcher/internal/config"
	"github.com/roommatch/matcher/internal/corpus"
	"github.com/roommatch/matcher/internal/observability"
	"github.com/roommatch/matcher/internal/providers"
	"github.com/roommatch/matcher/internal/rationale"
	"github.com/roommatch/matcher/internal/service"
	"github.com/roommatch/matcher/internal/similarity"
	"github.com/roommatch/matcher/pkg/cache"
	"github.com/roommatch/matcher/pkg/database"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	corpus         *corpus.Store
	server         *http.Server
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// components are the parts newHTTPServer mounts.
type components struct {
	health        *handlers.HealthHandler
	search        *handlers.SearchHandler
	metrics       http.Handler
	apiMetrics    observability.APIMetrics
	meterProvider *sdkmetric.MeterProvider
	tracer        *sdktrace.TracerProvider
}

// setupMetrics creates the meter provider and matcher metrics. Returns all nils
// when metrics are disabled.
func setupMetrics(ctx context.Context, cfg *config.Config) (*sdkmetric.MeterProvider, http.Handler, *observability.Metrics, error) {
	mp, handler, err := observability.NewMeterProvider(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter("matcher"))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, handler, metrics, nil
}

// loadCorpus loads the corpus from the configured source. The returned pool is
// non-nil only for the postgres source and is owned by the caller.
func loadCorpus(ctx context.Context, cfg *config.Config) (*corpus.Store, *pgxpool.Pool, error) {
	switch cfg.CorpusSource {
	case config.CorpusSourcePostgres:
		db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
		if err != nil {
			return nil, nil, fmt.Errorf("connect to corpus database: %w", err)
		}

		store, err := corpus.LoadPostgres(ctx, db, cfg.CorpusTable)
		if err != nil {
			db.Close()

			return nil, nil, fmt.Errorf("load corpus: %w", err)
		}

		return store, db, nil
	default:
		store, err := corpus.LoadFiles(cfg.CorpusProfilesPath, cfg.CorpusEmbeddingsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load corpus: %w", err)
		}

		return store, nil, nil
	}
}

// NewApp builds and wires all components. A corpus that fails its integrity
// checks aborts startup. It does not start the HTTP server; call Run.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		meterProvider  *sdkmetric.MeterProvider
		metricsHandler http.Handler
		metrics        *observability.Metrics
		tracerProvider *sdktrace.TracerProvider
		db             *pgxpool.Pool
	)

	defer func() {
		if err == nil {
			return
		}

		if db != nil {
			db.Close()
		}

		if obsErr := shutdownObservability(context.Background(), tracerProvider, meterProvider); obsErr != nil {
			logger.Error("shutdown observability after startup error", "error", obsErr)
		}
	}()

	if cfg.OtelMetricsExporter == "" {
		logger.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metricsHandler, metrics, err = setupMetrics(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.OtelTracesExporter == "" {
		logger.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}

		otel.SetTracerProvider(tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		))
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	var (
		pipelineMetrics observability.PipelineMetrics
		cacheMetrics    observability.CacheMetrics
		apiMetrics      observability.APIMetrics
	)
	if metrics != nil {
		pipelineMetrics = metrics.Pipeline
		cacheMetrics = metrics.Cache
		apiMetrics = metrics.API
	}

	var store *corpus.Store

	store, db, err = loadCorpus(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if store.Len() == 0 {
		logger.Warn("corpus is empty; every search will fail until it is populated")
	}

	if pipelineMetrics != nil {
		pipelineMetrics.SetCorpusProfiles(store.Len())
	}

	embeddingClient, err := providers.NewEmbeddingClient(ctx, cfg, store.Dimensions(), logger)
	if err != nil {
		return nil, err
	}

	textGenerator, err := providers.NewTextGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	generator := rationale.NewGenerator(textGenerator,
		rationale.WithTimeout(cfg.GenerationTimeout),
		rationale.WithRateLimit(cfg.GenerationRateLimit, cfg.AnnotateMaxConcurrency),
		rationale.WithLogger(logger),
	)

	annotator := service.NewAnnotator(generator,
		service.WithMaxConcurrency(cfg.AnnotateMaxConcurrency),
		service.WithAnnotatorMetrics(pipelineMetrics),
		service.WithAnnotatorLogger(logger),
	)

	var queryCache *cache.Loader[[]float32]

	if cfg.SearchQueryCacheSize > 0 {
		queryCache, err = cache.NewLoader[[]float32](cfg.SearchQueryCacheSize, cfg.SearchQueryCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create search query cache: %w", err)
		}
	}

	searchService := service.NewSearchService(service.SearchServiceParams{
		EmbeddingClient: embeddingClient,
		Retriever:       similarity.NewSearcher(store),
		Annotator:       annotator,
		TopK:            cfg.SearchTopK,
		QueryCache:      queryCache,
		CacheMetrics:    cacheMetrics,
		Metrics:         pipelineMetrics,
		Logger:          logger,
	})

	if cfg.APIKey == "" {
		logger.Warn("API_KEY not set; POST /search is public")
	}

	server := newHTTPServer(cfg, logger, components{
		health:        handlers.NewHealthHandler(store),
		search:        handlers.NewSearchHandler(searchService, logger),
		metrics:       metricsHandler,
		apiMetrics:    apiMetrics,
		meterProvider: meterProvider,
		tracer:        tracerProvider,
	})

	logger.Info("matcher ready",
		"profiles", store.Len(),
		"dimensions", store.Dimensions(),
		"embedding_provider", cfg.EmbeddingProvider,
		"generation_provider", cfg.GenerationProvider,
		"generation_model", cfg.GenerationModel,
		"top_k", cfg.SearchTopK,
		"max_concurrency", cfg.AnnotateMaxConcurrency,
	)

	return &App{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		corpus:         store,
		server:         server,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// newHTTPServer builds the HTTP server. /health, /ready and /metrics are public;
// POST /search goes through CORS, Auth and the body limit.
// Handler chain: RequestID -> otelhttp(Logging(mux)) so access logs get trace_id/span_id from context.
func newHTTPServer(cfg *config.Config, logger *slog.Logger, c components) *http.Server {
	var tooLarge middleware.RequestBodyTooLargeRecorder
	if c.apiMetrics != nil {
		tooLarge = c.apiMetrics
	}

	search := middleware.Auth(cfg.APIKey)(
		middleware.MaxBody(cfg.MaxRequestBodyBytes, tooLarge)(http.HandlerFunc(c.search.Search)),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", c.health.Check)
	mux.HandleFunc("GET /ready", c.health.Ready)
	mux.Handle("POST /search", search)

	if c.metrics != nil {
		mux.Handle("GET /metrics", c.metrics)
	}

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for probes and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				return false
			default:
				return true
			}
		}),
	}
	if c.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(c.meterProvider))
	}

	if c.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(c.tracer))
	}

	// CORS wraps everything so browser preflights never hit Auth.
	inner := middleware.CORS(middleware.SanitizeOrigins(cfg.CORSAllowedOrigins))(mux)
	inner = middleware.Logging(logger, c.apiMetrics)(inner)
	handler := otelhttp.NewHandler(inner, "matcher-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		// Annotation fans out to the generation API; leave room for the per-call timeout.
		writeTimeout = 90 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal) or
// the server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		a.logger.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown drains in-flight requests, then closes the database pool and flushes
// observability. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			a.logger.Error("shutdown observability", "error", obsErr)
		}
	}()

	if a.db != nil {
		defer a.db.Close()
	}

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
