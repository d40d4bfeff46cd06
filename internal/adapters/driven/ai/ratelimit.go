package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Ensure RateLimitedLLM implements LLMService
var _ driven.LLMService = (*RateLimitedLLM)(nil)

// RateLimitedLLM caps the request rate of a wrapped generator.
// Waiting for a token respects the caller's context deadline.
type RateLimitedLLM struct {
	next    driven.LLMService
	limiter *rate.Limiter
}

// NewRateLimitedLLM wraps next with a token bucket of rps and burst.
// A non-positive rps disables limiting and returns next unchanged.
func NewRateLimitedLLM(next driven.LLMService, rps float64, burst int) driven.LLMService {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedLLM{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedLLM) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %v", domain.ErrGenerationFailure, err)
	}
	return r.next.Generate(ctx, req)
}

func (r *RateLimitedLLM) Model() string { return r.next.Model() }

func (r *RateLimitedLLM) Ping(ctx context.Context) error { return r.next.Ping(ctx) }

func (r *RateLimitedLLM) Close() error { return r.next.Close() }
