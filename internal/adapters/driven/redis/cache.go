package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ResponseCache = (*ResponseCache)(nil)

const (
	// Key prefixes for Redis
	cachePrefix        = "policy-rag:answer:"
	cacheGenerationKey = "policy-rag:answer:generation"
)

// ResponseCache implements driven.ResponseCache using Redis.
// Entries expire through Redis TTLs. Every key embeds a generation
// counter, so Invalidate only has to bump the counter and stale entries
// are never read again.
type ResponseCache struct {
	client *redis.Client
}

// NewResponseCache creates a new Redis-backed ResponseCache
func NewResponseCache(client *redis.Client) *ResponseCache {
	return &ResponseCache{client: client}
}

// Generation returns the counter embedded in every key. It is 0 until
// the first Invalidate.
func (c *ResponseCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, cacheGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return generation, nil
}

// Get retrieves a cached response. A miss returns nil, nil.
func (c *ResponseCache) Get(ctx context.Context, generation int64, key string) (*domain.RAGResponse, error) {
	data, err := c.client.Get(ctx, entryKey(generation, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached response: %w", err)
	}

	var resp domain.RAGResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}
	return &resp, nil
}

// Set stores a response for ttl
func (c *ResponseCache) Set(ctx context.Context, generation int64, key string, resp *domain.RAGResponse, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	if err := c.client.Set(ctx, entryKey(generation, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return nil
}

// Invalidate makes every cached response unreachable
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, cacheGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy
func (c *ResponseCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func entryKey(generation int64, key string) string {
	return fmt.Sprintf("%s%d:%s", cachePrefix, generation, key)
}
