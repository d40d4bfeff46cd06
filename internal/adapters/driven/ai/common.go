package ai

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Provider names accepted by the factory
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderEino   = "eino"
	ProviderNone   = "none"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// nonBlank drops texts that are empty after trimming.
// An all-blank input is an embedding error.
func nonBlank(texts []string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no non-empty text to embed", domain.ErrEmbeddingGeneration)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// userPrompt renders the retrieved context and the question as the user turn.
func userPrompt(req driven.GenerationRequest) string {
	return fmt.Sprintf("Contexto de políticas:\n%s\n\nPregunta: %s", req.Context, req.Question)
}
