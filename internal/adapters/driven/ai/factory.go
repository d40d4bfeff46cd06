package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// EmbeddingSettings selects and configures an encoder
type EmbeddingSettings struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
}

// LLMSettings selects and configures an answer generator
type LLMSettings struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Temperature       float32
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an encoder. An empty provider means hash.
func (f *Factory) CreateEmbeddingService(ctx context.Context, s EmbeddingSettings) (driven.EmbeddingService, error) {
	switch s.Provider {
	case "", ProviderHash:
		return NewHashEmbedding(), nil
	case ProviderOpenAI:
		svc, err := NewOpenAIEmbedding(s.APIKey, s.Model, s.BaseURL, s.Dimensions)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case ProviderEino:
		svc, err := NewEinoEmbedding(ctx, s.APIKey, s.Model, s.BaseURL, s.Dimensions)
		if err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, s.Provider)
	}
}

// CreateLLMService creates a generator, wrapped in a rate limiter when
// RequestsPerSecond is set. Provider "none" or empty returns nil, nil.
func (f *Factory) CreateLLMService(ctx context.Context, s LLMSettings) (driven.LLMService, error) {
	opts := LLMOptions{Temperature: s.Temperature, MaxTokens: s.MaxTokens, Timeout: s.Timeout}

	var (
		svc driven.LLMService
		err error
	)
	switch s.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		svc, err = NewOpenAILLM(s.APIKey, s.Model, s.BaseURL, opts)
	case ProviderEino:
		svc, err = NewEinoLLM(ctx, s.APIKey, s.Model, s.BaseURL, opts)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, s.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRateLimitedLLM(svc, s.RequestsPerSecond, s.Burst), nil
}
