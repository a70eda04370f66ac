package models

// EmbeddingVector is the precomputed embedding of the profile at the same corpus index.
type EmbeddingVector []float32

// Candidate is a corpus entry selected by similarity search.
// Index is the profile's position in the corpus; Score is cosine similarity in [-1, 1].
type Candidate struct {
	Index   int
	Profile Profile
	Score   float64
}

// AnnotatedResult is a candidate plus its rationale. When generation failed,
// Rationale holds an error marker and Err the cause.
type AnnotatedResult struct {
	Profile   Profile
	Score     float64
	Rationale string
	Err       error
}

// Failed reports whether the rationale is an error marker.
func (r AnnotatedResult) Failed() bool {
	return r.Err != nil
}

// RetrievalOutput is the state handed from RETRIEVE to ANNOTATE.
type RetrievalOutput struct {
	Query      string
	Candidates []Candidate
}

// AnnotationOutput is the state produced by ANNOTATE.
type AnnotationOutput struct {
	Query   string
	Results []AnnotatedResult
}
