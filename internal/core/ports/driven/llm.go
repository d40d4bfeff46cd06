package driven

import (
	"context"
)

// GenerationRequest is the input of an answer generator
type GenerationRequest struct {
	// SystemPrompt holds the assistant instructions
	SystemPrompt string

	// Context is the retrieved policy text the answer must be based on
	Context string

	// Question is the user's question
	Question string
}

// LLMService generates free-text answers from retrieved context.
// Callers must treat any error as "no answer" and fall back.
type LLMService interface {
	// Generate returns the answer text for req
	Generate(ctx context.Context, req GenerationRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
