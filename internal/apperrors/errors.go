// Package apperrors provides the error taxonomy shared by the corpus, the search
// pipeline and the HTTP layer.
//
// Each type doubles as a sentinel: errors.Is(err, ErrRetrieval) matches any
// *RetrievalError in the chain regardless of its message or cause.
package apperrors

// ErrStartupIntegrity is the sentinel for corpus integrity failures at startup.
var ErrStartupIntegrity = &StartupIntegrityError{}

// StartupIntegrityError reports that the corpus cannot be served: a source is
// unreadable or malformed, or profiles and vectors are not co-indexed.
// The process must not become ready when this is returned.
type StartupIntegrityError struct {
	Source  string
	Message string
	Err     error
}

// NewStartupIntegrityError creates a StartupIntegrityError for source.
func NewStartupIntegrityError(source, message string, err error) *StartupIntegrityError {
	return &StartupIntegrityError{Source: source, Message: message, Err: err}
}

// Error implements the error interface.
func (e *StartupIntegrityError) Error() string {
	msg := "corpus integrity"
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}

	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *StartupIntegrityError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *StartupIntegrityError) Is(target error) bool {
	_, ok := target.(*StartupIntegrityError)

	return ok
}

// ErrRetrieval is the sentinel for RETRIEVE stage failures.
var ErrRetrieval = &RetrievalError{}

// RetrievalError is request-fatal: the query could not be embedded or the
// corpus could not be searched.
type RetrievalError struct {
	Message string
	Err     error
}

// NewRetrievalError creates a RetrievalError with a message and optional cause.
func NewRetrievalError(message string, err error) *RetrievalError {
	return &RetrievalError{Message: message, Err: err}
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	msg := "retrieval failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *RetrievalError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *RetrievalError) Is(target error) bool {
	_, ok := target.(*RetrievalError)

	return ok
}

// ErrGeneration is the sentinel for a single failed rationale call.
var ErrGeneration = &GenerationError{}

// GenerationError is isolated to one candidate. It is never returned from the
// pipeline; the coordinator turns it into an error-marker rationale.
type GenerationError struct {
	ProfileID string
	Err       error
}

// NewGenerationError creates a GenerationError for the given profile.
func NewGenerationError(profileID string, err error) *GenerationError {
	return &GenerationError{ProfileID: profileID, Err: err}
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generation failed"
	}

	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *GenerationError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *GenerationError) Is(target error) bool {
	_, ok := target.(*GenerationError)

	return ok
}

// ErrAnnotation is the sentinel for ANNOTATE stage failures.
var ErrAnnotation = &AnnotationError{}

// AnnotationError is request-fatal and rare: the fan-out coordinator could not run.
type AnnotationError struct {
	Message string
	Err     error
}

// NewAnnotationError creates an AnnotationError with a message and optional cause.
func NewAnnotationError(message string, err error) *AnnotationError {
	return &AnnotationError{Message: message, Err: err}
}

// Error implements the error interface.
func (e *AnnotationError) Error() string {
	msg := "annotation failed"
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *AnnotationError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *AnnotationError) Is(target error) bool {
	_, ok := target.(*AnnotationError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}
