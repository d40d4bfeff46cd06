package ai

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// HashDimensions is the fixed vector size of the hash encoder
const HashDimensions = 128

// HashModel is the model name reported by the hash encoder
const HashModel = "blake2b-hash"

// Ensure HashEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*HashEmbedding)(nil)

// HashEmbedding derives vectors from a blake2b XOF digest of the
// normalised text. Equal inputs give equal vectors; the vectors carry no
// semantic meaning. Used when no embedding model is reachable.
type HashEmbedding struct{}

// NewHashEmbedding creates the hash fallback encoder
func NewHashEmbedding() *HashEmbedding {
	return &HashEmbedding{}
}

// Embed hashes the lowercased, trimmed text into 128 values in [0,1).
func (h *HashEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	normalised := strings.ToLower(strings.TrimSpace(text))
	if normalised == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrEmbeddingGeneration)
	}

	xof, err := blake2b.NewXOF(HashDimensions, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingGeneration, err)
	}
	if _, err := xof.Write([]byte(normalised)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingGeneration, err)
	}
	digest := make([]byte, HashDimensions)
	if _, err := xof.Read(digest); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingGeneration, err)
	}

	vec := make([]float32, HashDimensions)
	for i, b := range digest {
		vec[i] = float32(b) / 256
	}
	return vec, nil
}

// EmbedBatch embeds every non-blank text
func (h *HashEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	valid, err := nonBlank(texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(valid))
	for i, t := range valid {
		if out[i], err = h.Embed(ctx, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (h *HashEmbedding) Dimensions() int { return HashDimensions }

func (h *HashEmbedding) Model() string { return HashModel }

func (h *HashEmbedding) HealthCheck(ctx context.Context) error { return nil }

func (h *HashEmbedding) Close() error { return nil }
