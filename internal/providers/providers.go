// Package providers builds the embedding and text generation clients selected
// by configuration.
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/roommatch/matcher/internal/config"
	"github.com/roommatch/matcher/internal/googleai"
	"github.com/roommatch/matcher/internal/openai"
	"github.com/roommatch/matcher/internal/rationale"
	"github.com/roommatch/matcher/internal/service"
)

// ErrUnsupportedProvider is returned for a provider name other than openai or google.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// EmbeddingHTTPTimeout bounds each embedding HTTP attempt.
const EmbeddingHTTPTimeout = 15 * time.Second

// NewRetryingHTTPClient returns an http.Client that retries connection errors,
// 429 and 5xx responses up to maxRetries times with backoff.
func NewRetryingHTTPClient(maxRetries int, timeout time.Duration, logger *slog.Logger) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = maxRetries
	retryClient.HTTPClient.Timeout = timeout

	if logger != nil {
		retryClient.Logger = logger.With("component", "embedding_http")
	} else {
		retryClient.Logger = nil
	}

	return retryClient.StandardClient()
}

// NewEmbeddingClient builds the embedding client. dimensions is the corpus
// dimension (0 when unknown); cfg.EmbeddingDimensions overrides it when set.
func NewEmbeddingClient(ctx context.Context, cfg *config.Config, dimensions int, logger *slog.Logger) (service.EmbeddingClient, error) {
	if cfg.EmbeddingDimensions > 0 {
		dimensions = cfg.EmbeddingDimensions
	}

	httpClient := NewRetryingHTTPClient(cfg.EmbeddingMaxRetries, EmbeddingHTTPTimeout, logger)

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingAPIKey,
			openai.WithBaseURL(cfg.EmbeddingBaseURL),
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
			openai.WithDimensions(EmbeddingDimensionsParam(cfg, dimensions)),
			openai.WithHTTPClient(httpClient),
		), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.EmbeddingAPIKey,
			googleai.WithBaseURL(cfg.EmbeddingBaseURL),
			googleai.WithEmbeddingModel(cfg.EmbeddingModel),
			googleai.WithDimensions(dimensions),
			googleai.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create google embedding client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.EmbeddingProvider)
	}
}

// EmbeddingDimensionsParam decides the dimensions parameter sent to an
// OpenAI-compatible server. Self-hosted servers (EMBEDDING_BASE_URL set) often
// reject it, so only an explicit EMBEDDING_DIMENSIONS is sent to them.
func EmbeddingDimensionsParam(cfg *config.Config, corpusDims int) int {
	if cfg.EmbeddingBaseURL != "" {
		return cfg.EmbeddingDimensions
	}

	return corpusDims
}

// NewTextGenerator builds the completion client behind the rationale generator.
// Generation makes a single attempt per candidate; failures become error markers.
func NewTextGenerator(ctx context.Context, cfg *config.Config) (rationale.TextGenerator, error) {
	switch cfg.GenerationProvider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.GenerationAPIKey,
			openai.WithBaseURL(cfg.GenerationBaseURL),
			openai.WithChatModel(cfg.GenerationModel),
			openai.WithMaxTokens(cfg.GenerationMaxTokens),
		), nil
	case config.ProviderGoogle:
		client, err := googleai.NewClient(ctx, cfg.GenerationAPIKey,
			googleai.WithBaseURL(cfg.GenerationBaseURL),
			googleai.WithGenerateModel(cfg.GenerationModel),
			googleai.WithMaxTokens(cfg.GenerationMaxTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("create google generation client: %w", err)
		}

		return client, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.GenerationProvider)
	}
}
