package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates an empty or too long query, an out of range
	// top_k, or an unknown department
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmbeddingGeneration indicates the encoder could not produce a vector
	ErrEmbeddingGeneration = errors.New("embedding generation failed")

	// ErrSearchFailure indicates the vector store could not be searched
	ErrSearchFailure = errors.New("search failed")

	// ErrGenerationFailure indicates the answer generator failed
	ErrGenerationFailure = errors.New("answer generation failed")

	// ErrDimensionMismatch indicates vectors of different lengths were compared
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInternal is the generic domain failure for uncategorised errors
	ErrInternal = errors.New("internal error")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrLockNotAcquired indicates another instance holds the lock
	ErrLockNotAcquired = errors.New("lock not acquired")
)

// Validation errors for document ingestion
var (
	ErrMissingTitle    = fmt.Errorf("%w: title is required", ErrInvalidInput)
	ErrMissingContent  = fmt.Errorf("%w: content is required", ErrInvalidInput)
	ErrMissingCategory = fmt.Errorf("%w: category is required", ErrInvalidInput)
)

// ErrUnknownDepartment is returned for a department outside the static table
var ErrUnknownDepartment = fmt.Errorf("%w: unknown department", ErrInvalidQuery)

// Kind returns the name of the domain error category err belongs to.
// Uncategorised errors are reported as "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmbeddingGeneration):
		return "embedding_generation"
	case errors.Is(err, ErrSearchFailure):
		return "search_failure"
	case errors.Is(err, ErrGenerationFailure):
		return "generation_failure"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	default:
		return "internal"
	}
}

// PublicMessage returns the text that may be shown to a client for err.
// Caller mistakes keep their detail; every other kind gets a fixed message
// so upstream provider and storage errors stay in the logs.
func PublicMessage(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "invalid_query", "invalid_input", "not_found":
		return err.Error()
	case "embedding_generation":
		return ErrEmbeddingGeneration.Error()
	case "search_failure":
		return ErrSearchFailure.Error()
	case "generation_failure":
		return ErrGenerationFailure.Error()
	case "service_unavailable":
		return ErrServiceUnavailable.Error()
	default:
		return "internal server error"
	}
}
