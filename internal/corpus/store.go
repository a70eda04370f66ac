// Package corpus holds the read-only profile corpus and its precomputed embeddings.
//
// A Store is built once at startup and never mutated afterwards, so it is safe to
// share across requests and goroutines without locking.
package corpus

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/mat"

	"github.com/roommatch/matcher/internal/apperrors"
	"github.com/roommatch/matcher/internal/models"
	"github.com/roommatch/matcher/pkg/embeddings"
)

// ErrIndexOutOfRange is returned by Get for an index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("corpus index out of range")

// validate is safe for concurrent use; nothing registers on it after init.
var validate = validator.New()

// Store is the in-memory corpus. Profile i and vector i describe the same record.
type Store struct {
	profiles []models.Profile
	vectors  []models.EmbeddingVector
	dims     int

	// unit is N x dims with each row L2-normalized, so a matrix-vector product
	// with a unit query yields cosine similarities. Nil when the corpus is empty.
	unit *mat.Dense
}

// New builds a Store from co-indexed profiles and vectors. source names where the
// data came from and is only used in errors. Any integrity problem is returned as
// *apperrors.StartupIntegrityError.
func New(source string, profiles []models.Profile, vectors []models.EmbeddingVector) (*Store, error) {
	if len(profiles) != len(vectors) {
		return nil, apperrors.NewStartupIntegrityError(source,
			fmt.Sprintf("%d profiles but %d vectors", len(profiles), len(vectors)), nil)
	}

	s := &Store{
		profiles: make([]models.Profile, len(profiles)),
		vectors:  make([]models.EmbeddingVector, len(vectors)),
	}

	if len(profiles) == 0 {
		return s, nil
	}

	s.dims = len(vectors[0])

	for i := range profiles {
		if err := validate.Struct(profiles[i]); err != nil {
			return nil, apperrors.NewStartupIntegrityError(source, fmt.Sprintf("profile %d", i), err)
		}

		if err := embeddings.Validate(vectors[i]); err != nil {
			return nil, apperrors.NewStartupIntegrityError(source, fmt.Sprintf("vector %d", i), err)
		}

		if len(vectors[i]) != s.dims {
			return nil, apperrors.NewStartupIntegrityError(source,
				fmt.Sprintf("vector %d has %d dimensions, want %d", i, len(vectors[i]), s.dims), nil)
		}

		s.profiles[i] = profiles[i].Clone()
		s.vectors[i] = append(models.EmbeddingVector(nil), vectors[i]...)
	}

	data := make([]float64, len(vectors)*s.dims)
	for i, v := range s.vectors {
		embeddings.UnitFloat64(data[i*s.dims:(i+1)*s.dims], v)
	}

	s.unit = mat.NewDense(len(vectors), s.dims, data)

	return s, nil
}

// Len returns the number of profiles.
func (s *Store) Len() int {
	return len(s.profiles)
}

// Dimensions returns the embedding dimension, or 0 for an empty corpus.
func (s *Store) Dimensions() int {
	return s.dims
}

// Get returns the profile at index.
func (s *Store) Get(index int) (models.Profile, error) {
	if index < 0 || index >= len(s.profiles) {
		return models.Profile{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.profiles))
	}

	return s.profiles[index], nil
}

// AllVectors returns the embedding vectors in corpus order. The returned slice is
// a fresh copy of the outer slice; the vectors themselves must not be modified.
func (s *Store) AllVectors() []models.EmbeddingVector {
	out := make([]models.EmbeddingVector, len(s.vectors))
	copy(out, s.vectors)

	return out
}

// UnitMatrix returns the row-normalized corpus matrix, or nil for an empty corpus.
// It must be treated as read-only.
func (s *Store) UnitMatrix() mat.Matrix {
	if s.unit == nil {
		return nil
	}

	return s.unit
}
