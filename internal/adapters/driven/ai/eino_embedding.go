package ai

import (
	"context"
	"errors"
	"fmt"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Ensure EinoEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*EinoEmbedding)(nil)

// EinoEmbedding adapts an eino Embedder to the EmbeddingService port.
type EinoEmbedding struct {
	embedder   embedding.Embedder
	model      string
	dimensions int
}

// NewEinoEmbedding builds an OpenAI-compatible eino embedder.
func NewEinoEmbedding(ctx context.Context, apiKey, model, baseURL string, dimensions int) (*EinoEmbedding, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	embedder, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}
	return NewEinoEmbeddingFrom(embedder, model, dimensions), nil
}

// NewEinoEmbeddingFrom wraps an existing embedder.
// dimensions defaults to 1536 when not positive.
func NewEinoEmbeddingFrom(embedder embedding.Embedder, model string, dimensions int) *EinoEmbedding {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &EinoEmbedding{embedder: embedder, model: model, dimensions: dimensions}
}

// Embed generates the embedding of one text
func (e *EinoEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for the non-blank texts
func (e *EinoEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	valid, err := nonBlank(texts)
	if err != nil {
		return nil, err
	}

	vectors, err := e.embedder.EmbedStrings(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingGeneration, err)
	}
	if len(vectors) != len(valid) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbeddingGeneration, len(valid), len(vectors))
	}

	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty embedding returned", domain.ErrEmbeddingGeneration)
		}
		out[i] = toFloat32(v)
	}
	return out, nil
}

func (e *EinoEmbedding) Dimensions() int { return e.dimensions }

func (e *EinoEmbedding) Model() string { return e.model }

// HealthCheck embeds a short probe text
func (e *EinoEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "health check")
	return err
}

func (e *EinoEmbedding) Close() error { return nil }
