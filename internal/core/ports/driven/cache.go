package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// ResponseCache stores composed answers keyed by the question and its options.
// Entries belong to a generation. A caller reads the generation once before
// answering and passes it to both Get and Set, so an answer built while the
// corpus changed is stored under a generation nobody reads any more.
type ResponseCache interface {
	// Generation returns the current cache generation
	Generation(ctx context.Context) (int64, error)

	// Get returns the response cached for key in generation, or nil, nil on a miss
	Get(ctx context.Context, generation int64, key string) (*domain.RAGResponse, error)

	// Set stores resp for ttl under key in generation
	Set(ctx context.Context, generation int64, key string, resp *domain.RAGResponse, ttl time.Duration) error

	// Invalidate advances the generation, dropping every cached response.
	// Called whenever the corpus changes.
	Invalidate(ctx context.Context) error

	// Ping checks if the cache backend is healthy
	Ping(ctx context.Context) error
}
