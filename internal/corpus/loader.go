package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
)

// LoadFiles reads a JSON array of profile objects and a JSON array of embedding
// vectors (one array of numbers per profile, same order) and builds a Store.
func LoadFiles(profilesPath, embeddingsPath string) (*Store, error) {
	var profiles []models.Profile
	if err := readJSON(profilesPath, &profiles); err != nil {
		return nil, err
	}

	var vectors []models.EmbeddingVector
	if err := readJSON(embeddingsPath, &vectors); err != nil {
		return nil, err
	}

	store, err := New(profilesPath+" + "+embeddingsPath, profiles, vectors)
	if err != nil {
		return nil, err
	}

	slog.Info("corpus loaded from files",
		"profiles_path", profilesPath,
		"embeddings_path", embeddingsPath,
		"profiles", store.Len(),
		"dimensions", store.Dimensions(),
	)

	return store, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewStartupIntegrityError(path, "unreadable", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewStartupIntegrityError(path, "malformed", fmt.Errorf("decode json: %w", err))
	}

	return nil
}
