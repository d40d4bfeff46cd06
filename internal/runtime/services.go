package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Services holds the encoder and generator used by the retrieval service.
// Either can be swapped while the process runs; readers always see a
// consistent pair of service and capability flag.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	llmService       driven.LLMService // nil when answers come from the template composer
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current encoder (nil before startup wiring)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current generator (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// SetEmbeddingService replaces the encoder, closing the previous one.
// fallback records whether svc is the hash fallback encoder.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEncoderFallback(fallback)
}

// SetLLMService replaces the generator, closing the previous one.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}

	s.llmService = svc
	s.config.SetGeneratorAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}

	s.config.SetGeneratorAvailable(false)

	return nil
}

// ValidateAndSetEmbedding health-checks svc and installs it. When the check
// fails, svc is closed and fallback is installed instead. The returned
// error is the health check failure, reported even though the registry
// stays usable.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc, fallback driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(fallback, true)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		slog.Warn("encoder unavailable, using hash fallback",
			"model", svc.Model(),
			"error", err)
		s.SetEmbeddingService(fallback, true)
		return err
	}

	s.SetEmbeddingService(svc, false)
	return nil
}

// ValidateAndSetLLM pings svc before installing it. On failure no
// generator is installed and answers use the template composer.
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		s.SetLLMService(nil)
		return err
	}

	s.SetLLMService(svc)
	return nil
}
