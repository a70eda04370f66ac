// Package similarity ranks corpus profiles by cosine similarity to a query vector.
package similarity

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/roommatch/matcher/internal/models"
	"github.com/roommatch/matcher/pkg/embeddings"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrDimensionMismatch is returned when the query and corpus dimensions differ.
	ErrDimensionMismatch = errors.New("query dimension does not match corpus")
	// ErrEmptyCorpus is returned when there is nothing to search.
	ErrEmptyCorpus = errors.New("corpus is empty")
)

// Corpus is the read-only view of the corpus the searcher needs.
type Corpus interface {
	Len() int
	Dimensions() int
	Get(index int) (models.Profile, error)
	UnitMatrix() mat.Matrix
}

// Searcher scores a query against every corpus vector.
type Searcher struct {
	corpus Corpus
}

// NewSearcher creates a Searcher over corpus.
func NewSearcher(corpus Corpus) *Searcher {
	return &Searcher{corpus: corpus}
}

// Len returns the number of searchable profiles.
func (s *Searcher) Len() int {
	return s.corpus.Len()
}

// Search returns the min(k, N) most similar profiles, highest score first.
// Equal scores are ordered by ascending corpus index. A zero query or corpus
// vector scores 0 against everything.
func (s *Searcher) Search(query models.EmbeddingVector, k int) ([]models.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	n := s.corpus.Len()
	if n == 0 {
		return nil, ErrEmptyCorpus
	}

	if err := embeddings.Validate(query); err != nil {
		return nil, fmt.Errorf("invalid query vector: %w", err)
	}

	if len(query) != s.corpus.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d, corpus has %d", ErrDimensionMismatch, len(query), s.corpus.Dimensions())
	}

	scores := s.scores(query)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return a - b
		}
	})

	limit := min(k, n)
	out := make([]models.Candidate, 0, limit)

	for _, idx := range order[:limit] {
		profile, err := s.corpus.Get(idx)
		if err != nil {
			return nil, err
		}

		out = append(out, models.Candidate{Index: idx, Profile: profile, Score: scores[idx]})
	}

	return out, nil
}

// scores returns the cosine similarity of query with each corpus row.
func (s *Searcher) scores(query models.EmbeddingVector) []float64 {
	unit := mat.NewVecDense(len(query), embeddings.UnitFloat64(nil, query))

	var out mat.VecDense
	out.MulVec(s.corpus.UnitMatrix(), unit)

	scores := make([]float64, out.Len())
	for i := range scores {
		scores[i] = out.AtVec(i)
	}

	return scores
}
