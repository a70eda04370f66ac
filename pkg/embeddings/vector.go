// Package embeddings provides utilities for embedding vectors (L2 norm, normalization, validation).
package embeddings

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyVector is returned when a vector has no components.
	ErrEmptyVector = errors.New("embedding vector is empty")
	// ErrNonFinite is returned when a vector contains NaN or Inf.
	ErrNonFinite = errors.New("embedding vector contains a non-finite value")
)

// Norm returns the L2 magnitude of vector, accumulated in float64.
func Norm(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// NormalizeL2 normalizes vector to unit length in place.
// A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	magnitude := Norm(vector)
	if magnitude == 0 {
		return
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// UnitFloat64 writes the unit-length float64 form of vector into dst and returns it.
// dst is allocated when nil or too short. A zero vector yields all zeros, so its
// cosine similarity with anything is 0.
func UnitFloat64(dst []float64, vector []float32) []float64 {
	if len(dst) < len(vector) {
		dst = make([]float64, len(vector))
	}

	dst = dst[:len(vector)]

	magnitude := Norm(vector)
	for i, v := range vector {
		if magnitude == 0 {
			dst[i] = 0

			continue
		}

		dst[i] = float64(v) / magnitude
	}

	return dst
}

// Validate checks that vector is non-empty and finite.
func Validate(vector []float32) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	for i, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w at component %d", ErrNonFinite, i)
		}
	}

	return nil
}
