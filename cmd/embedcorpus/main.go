// Command embedcorpus computes the embedding of every profile's raw text with
// the configured embedding provider and writes the co-indexed embeddings file
// the server loads at startup.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/roommatch/matcher/internal/config"
	"github.com/roommatch/matcher/internal/corpus"
	"github.com/roommatch/matcher/internal/models"
	"github.com/roommatch/matcher/internal/observability"
	"github.com/roommatch/matcher/internal/providers"
	"github.com/roommatch/matcher/internal/service"
	"github.com/roommatch/matcher/pkg/embeddings"
)

const (
	defaultConcurrency = 4
	exitSuccess        = 0
	exitFailure        = 1
)

var errDimensionsDiffer = errors.New("provider returned embeddings of different dimensions")

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	concurrency := getEnvAsInt("EMBED_CONCURRENCY", defaultConcurrency)
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	outPath := os.Getenv("EMBED_OUTPUT_PATH")
	if outPath == "" {
		outPath = cfg.CorpusEmbeddingsPath
	}

	ctx := context.Background()

	profiles, err := readProfiles(cfg.CorpusProfilesPath)
	if err != nil {
		logger.Error("Failed to read profiles", "path", cfg.CorpusProfilesPath, "error", err)

		return exitFailure
	}

	client, err := providers.NewEmbeddingClient(ctx, cfg, 0, logger)
	if err != nil {
		logger.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}

	vectors, err := embedProfiles(ctx, client, profiles, concurrency)
	if err != nil {
		logger.Error("Embedding failed", "error", err)

		return exitFailure
	}

	// Same checks the server runs at startup.
	store, err := corpus.New(cfg.CorpusProfilesPath, profiles, vectors)
	if err != nil {
		logger.Error("Embedded corpus failed integrity checks", "error", err)

		return exitFailure
	}

	if err := writeJSONAtomic(outPath, vectors); err != nil {
		logger.Error("Failed to write embeddings", "path", outPath, "error", err)

		return exitFailure
	}

	logger.Info("Embeddings written", "path", outPath, "profiles", store.Len(), "dimensions", store.Dimensions())
	fmt.Printf("Wrote %d embedding(s) of dimension %d to %s.\n", store.Len(), store.Dimensions(), outPath)

	return exitSuccess
}

func readProfiles(path string) ([]models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var profiles []models.Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return profiles, nil
}

// embedProfiles embeds each profile's raw text, at most concurrency calls at a
// time. The result is co-indexed with profiles. The first failure cancels the rest.
func embedProfiles(
	ctx context.Context, client service.EmbeddingClient, profiles []models.Profile, concurrency int,
) ([]models.EmbeddingVector, error) {
	vectors := make([]models.EmbeddingVector, len(profiles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range profiles {
		g.Go(func() error {
			vec, err := client.CreateEmbedding(ctx, profiles[i].RawProfileText)
			if err != nil {
				return fmt.Errorf("profile %d (id %s): %w", i, profiles[i].ID, err)
			}

			if err := embeddings.Validate(vec); err != nil {
				return fmt.Errorf("profile %d (id %s): %w", i, profiles[i].ID, err)
			}

			vectors[i] = vec

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: %d at index 0, %d at index %d",
				errDimensionsDiffer, len(vectors[0]), len(vectors[i]), i)
		}
	}

	return vectors, nil
}

// writeJSONAtomic writes v to path through a temporary file in the same directory.
func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".embeddings-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func getEnvAsInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}

	return n
}
