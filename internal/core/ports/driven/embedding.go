package driven

import (
	"context"
)

// EmbeddingService maps text to fixed-length vectors
type EmbeddingService interface {
	// Embed generates the embedding of one text.
	// Blank text fails with domain.ErrEmbeddingGeneration.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, skipping blank entries.
	// Fails with domain.ErrEmbeddingGeneration when no text remains.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
