// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Corpus sources.
const (
	CorpusSourceFile     = "file"
	CorpusSourcePostgres = "postgres"
)

// Model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// GeminiOpenAIBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

var (
	ErrInvalidCorpusSource   = errors.New("CORPUS_SOURCE must be file or postgres")
	ErrDatabaseURLRequired   = errors.New("DATABASE_URL is required when CORPUS_SOURCE=postgres")
	ErrInvalidProvider       = errors.New("provider must be openai or google")
	ErrInvalidTopK           = errors.New("SEARCH_TOP_K must be a positive integer")
	ErrInvalidConcurrency    = errors.New("ANNOTATE_MAX_CONCURRENCY must be a positive integer")
	ErrInvalidMaxTokens      = errors.New("GENERATION_MAX_TOKENS must be a positive integer")
	ErrInvalidBodyLimit      = errors.New("MAX_REQUEST_BODY_BYTES must be a positive integer")
	ErrInvalidCacheSize      = errors.New("SEARCH_QUERY_CACHE_SIZE must not be negative")
	ErrInvalidEmbeddingDims  = errors.New("EMBEDDING_DIMENSIONS must not be negative")
	ErrInvalidEmbeddingRetry = errors.New("EMBEDDING_MAX_RETRIES must not be negative")
)

var defaultCORSOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
}

// Config holds all application configuration.
type Config struct {
	Port     string
	LogLevel string
	// APIKey protects POST /search when set. Empty leaves it public.
	APIKey              string
	CORSAllowedOrigins  []string
	MaxRequestBodyBytes int64

	CorpusSource         string
	CorpusProfilesPath   string
	CorpusEmbeddingsPath string
	DatabaseURL          string
	CorpusTable          string

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int
	EmbeddingMaxRetries int

	GenerationProvider  string
	GenerationModel     string
	GenerationAPIKey    string
	GenerationBaseURL   string
	GenerationMaxTokens int
	GenerationTimeout   time.Duration
	// GenerationRateLimit is requests per second across the process; 0 disables it.
	GenerationRateLimit float64

	SearchTopK             int
	AnnotateMaxConcurrency int
	// SearchQueryCacheSize of 0 disables the query embedding cache.
	SearchQueryCacheSize int
	SearchQueryCacheTTL  time.Duration

	// OtelMetricsExporter is "prometheus", "otlp" or empty (disabled).
	OtelMetricsExporter string
	// OtelTracesExporter is "otlp", "stdout" or empty (disabled).
	OtelTracesExporter string
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration (e.g. "20s") or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsList splits a comma-separated variable, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string

	for item := range strings.SplitSeq(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8000"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		APIKey:              os.Getenv("API_KEY"),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", 64*1024)),

		CorpusSource:         strings.ToLower(getEnv("CORPUS_SOURCE", CorpusSourceFile)),
		CorpusProfilesPath:   getEnv("CORPUS_PROFILES_PATH", "profiles.json"),
		CorpusEmbeddingsPath: getEnv("CORPUS_EMBEDDINGS_PATH", "profile_embeddings.json"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		CorpusTable:          getEnv("CORPUS_TABLE", "profiles"),

		EmbeddingProvider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", ProviderOpenAI)),
		EmbeddingModel:      os.Getenv("EMBEDDING_MODEL"),
		EmbeddingAPIKey:     os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingBaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingDimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 0),
		EmbeddingMaxRetries: getEnvAsInt("EMBEDDING_MAX_RETRIES", 2),

		GenerationProvider:  strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderOpenAI)),
		GenerationModel:     getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		GenerationAPIKey:    os.Getenv("GENERATION_API_KEY"),
		GenerationBaseURL:   os.Getenv("GENERATION_BASE_URL"),
		GenerationMaxTokens: getEnvAsInt("GENERATION_MAX_TOKENS", 150),
		GenerationTimeout:   getEnvAsDuration("GENERATION_TIMEOUT", 20*time.Second),
		GenerationRateLimit: getEnvAsFloat("GENERATION_RATE_LIMIT", 0),

		SearchTopK:             getEnvAsInt("SEARCH_TOP_K", 5),
		AnnotateMaxConcurrency: getEnvAsInt("ANNOTATE_MAX_CONCURRENCY", 5),
		SearchQueryCacheSize:   getEnvAsInt("SEARCH_QUERY_CACHE_SIZE", 1000),
		SearchQueryCacheTTL:    getEnvAsDuration("SEARCH_QUERY_CACHE_TTL", 10*time.Minute),

		OtelMetricsExporter: strings.ToLower(os.Getenv("OTEL_METRICS_EXPORTER")),
		OtelTracesExporter:  strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),
	}

	// The OpenAI-compatible generation client talks to Gemini unless pointed elsewhere.
	if cfg.GenerationProvider == ProviderOpenAI && cfg.GenerationBaseURL == "" {
		cfg.GenerationBaseURL = GeminiOpenAIBaseURL
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CorpusSource {
	case CorpusSourceFile:
	case CorpusSourcePostgres:
		if c.DatabaseURL == "" {
			return ErrDatabaseURLRequired
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidCorpusSource, c.CorpusSource)
	}

	for name, provider := range map[string]string{
		"EMBEDDING_PROVIDER":  c.EmbeddingProvider,
		"GENERATION_PROVIDER": c.GenerationProvider,
	} {
		if provider != ProviderOpenAI && provider != ProviderGoogle {
			return fmt.Errorf("%s: %w: got %q", name, ErrInvalidProvider, provider)
		}
	}

	switch {
	case c.SearchTopK <= 0:
		return ErrInvalidTopK
	case c.AnnotateMaxConcurrency <= 0:
		return ErrInvalidConcurrency
	case c.GenerationMaxTokens <= 0:
		return ErrInvalidMaxTokens
	case c.MaxRequestBodyBytes <= 0:
		return ErrInvalidBodyLimit
	case c.SearchQueryCacheSize < 0:
		return ErrInvalidCacheSize
	case c.EmbeddingDimensions < 0:
		return ErrInvalidEmbeddingDims
	case c.EmbeddingMaxRetries < 0:
		return ErrInvalidEmbeddingRetry
	}

	return nil
}
