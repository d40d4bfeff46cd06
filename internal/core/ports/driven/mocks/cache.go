package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// MockResponseCache is an in-memory ResponseCache that ignores TTLs.
// Entries of older generations are kept, as in Redis, but never read.
type MockResponseCache struct {
	mu            sync.Mutex
	entries       map[string]domain.RAGResponse
	generation    int64
	Hits          int
	Invalidations int

	// GetErr, when set, is returned by Get
	GetErr error
}

// NewMockResponseCache creates a new MockResponseCache
func NewMockResponseCache() *MockResponseCache {
	return &MockResponseCache{entries: make(map[string]domain.RAGResponse)}
}

func (m *MockResponseCache) Generation(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation, nil
}

func (m *MockResponseCache) Get(ctx context.Context, generation int64, key string) (*domain.RAGResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	resp, ok := m.entries[entryKey(generation, key)]
	if !ok {
		return nil, nil
	}
	m.Hits++
	return &resp, nil
}

func (m *MockResponseCache) Set(ctx context.Context, generation int64, key string, resp *domain.RAGResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entryKey(generation, key)] = *resp
	return nil
}

func (m *MockResponseCache) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.Invalidations++
	return nil
}

func (m *MockResponseCache) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of responses readable in the current generation
func (m *MockResponseCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := entryKey(m.generation, "")
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func entryKey(generation int64, key string) string {
	return fmt.Sprintf("%d:%s", generation, key)
}
