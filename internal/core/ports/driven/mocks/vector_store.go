package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/vector"
)

// MockVectorStore is an in-memory VectorStore. Category filtering joins
// against the given document store.
type MockVectorStore struct {
	mu     sync.RWMutex
	chunks []*domain.Chunk
	nextID int64
	docs   *MockDocumentStore

	// SearchErr, when set, is returned by Search
	SearchErr error
}

// NewMockVectorStore creates a new MockVectorStore
func NewMockVectorStore(docs *MockDocumentStore) *MockVectorStore {
	return &MockVectorStore{docs: docs}
}

func (m *MockVectorStore) Save(ctx context.Context, chunk *domain.Chunk) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	chunk.ID = m.nextID
	stored := *chunk
	m.chunks = append(m.chunks, &stored)
	return chunk.ID, nil
}

func (m *MockVectorStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	for _, c := range chunks {
		if _, err := m.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, query []float32, topK int, category string) ([]*domain.Chunk, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	m.mu.RLock()
	candidates := make([]*domain.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		if category != "" && !m.inCategory(ctx, c.DocumentID, category) {
			continue
		}
		candidates = append(candidates, c)
	}
	m.mu.RUnlock()

	return vector.Rank(query, candidates, topK)
}

func (m *MockVectorStore) inCategory(ctx context.Context, documentID int64, category string) bool {
	if m.docs == nil {
		return false
	}
	doc, err := m.docs.Get(ctx, documentID)
	return err == nil && doc.Category == category
}

func (m *MockVectorStore) DeleteByDocument(ctx context.Context, documentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.chunks[:0]
	removed := false
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	m.chunks = kept
	return removed, nil
}

func (m *MockVectorStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

// ChunksFor returns the stored chunks of a document (for test assertions).
func (m *MockVectorStore) ChunksFor(documentID int64) []*domain.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Chunk
	for _, c := range m.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out
}
