package domain

import "sync"

// RuntimeConfig tracks which backends are active. Storage and cache
// backends are fixed at startup; encoder and generator flags change when
// the AI services are swapped.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	StorageBackend string // "sqlite" or "postgres"
	CacheEnabled   bool

	encoderFallback    bool
	generatorAvailable bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(storageBackend string, cacheEnabled bool) *RuntimeConfig {
	return &RuntimeConfig{
		StorageBackend: storageBackend,
		CacheEnabled:   cacheEnabled,
	}
}

// EncoderFallback returns whether the hash fallback encoder is in use
func (c *RuntimeConfig) EncoderFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.encoderFallback
}

// GeneratorAvailable returns whether an answer generator is configured
func (c *RuntimeConfig) GeneratorAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generatorAvailable
}

// SetEncoderFallback updates the fallback flag
func (c *RuntimeConfig) SetEncoderFallback(fallback bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.encoderFallback = fallback
}

// SetGeneratorAvailable updates the generator availability flag
func (c *RuntimeConfig) SetGeneratorAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generatorAvailable = available
}
