package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	documents map[int64]*domain.Document
	nextID    int64

	// SaveErr, when set, is returned by Save
	SaveErr error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[int64]*domain.Document),
	}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.Document) (int64, error) {
	if m.SaveErr != nil {
		return 0, m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.ID == 0 {
		m.nextID++
		doc.ID = m.nextID
	} else if _, ok := m.documents[doc.ID]; !ok {
		return 0, domain.ErrNotFound
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	stored := *doc
	m.documents[doc.ID] = &stored
	return doc.ID, nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id int64) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (m *MockDocumentStore) GetByCategory(ctx context.Context, category string) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*domain.Document
	for _, doc := range m.documents {
		if doc.Category == category {
			out := *doc
			docs = append(docs, &out)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

func (m *MockDocumentStore) Categories(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := make(map[string]struct{})
	for _, doc := range m.documents {
		set[doc.Category] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents), nil
}

// Remove deletes a document without touching its chunks, leaving them
// orphaned (for test setup).
func (m *MockDocumentStore) Remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
}
