package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.RAGService = (*MockRAGService)(nil)

// MockRAGService is an in-memory RAGService for testing driving adapters.
// Search matches documents whose content contains any query word and scores
// them by the fraction of words found.
type MockRAGService struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]*domain.Document

	// Answer, when set, replaces the composed answer text
	Answer string

	// Err, when set, is returned by Ask and SearchDocuments
	Err error

	// LastAsk records the options of the most recent Ask call
	LastAsk domain.AskOptions
}

// NewMockRAGService creates an empty MockRAGService
func NewMockRAGService() *MockRAGService {
	return &MockRAGService{docs: make(map[int64]*domain.Document)}
}

func (m *MockRAGService) AddDocument(ctx context.Context, req domain.AddDocumentRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.docs[m.nextID] = &domain.Document{
		ID:        m.nextID,
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		Metadata:  req.Metadata,
		CreatedAt: time.Now(),
	}
	return m.nextID, nil
}

func (m *MockRAGService) SearchDocuments(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, domain.ErrInvalidQuery
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.SearchResult
	for _, doc := range m.docs {
		if opts.Category != "" && doc.Category != opts.Category {
			continue
		}
		content := strings.ToLower(doc.Content)
		hits := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(words))
		results = append(results, domain.SearchResult{
			Document:       doc,
			Chunk:          &domain.Chunk{DocumentID: doc.ID, Text: content, Similarity: score},
			RelevanceScore: score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockRAGService) GenerateResponse(ctx context.Context, query string, useGenerator bool) (*domain.RAGResponse, error) {
	return m.Ask(ctx, query, domain.AskOptions{UseGenerator: useGenerator})
}

func (m *MockRAGService) Ask(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error) {
	m.mu.Lock()
	m.LastAsk = opts
	m.mu.Unlock()

	if opts.Department != "" {
		if _, ok := domain.LookupDepartment(opts.Department); !ok {
			return nil, domain.ErrUnknownDepartment
		}
	}
	results, err := m.SearchDocuments(ctx, query, domain.SearchOptions{TopK: opts.TopK, Category: opts.Category})
	if err != nil {
		return nil, err
	}

	resp := &domain.RAGResponse{
		Query:        query,
		Sources:      results,
		Confidence:   domain.Confidence(results),
		Department:   opts.Department,
		AnswerSource: domain.AnswerSourceTemplate,
		Timestamp:    time.Now(),
	}
	switch {
	case len(results) == 0:
		resp.Answer = "No encontré información relevante."
		resp.AnswerSource = domain.AnswerSourceNoResults
	case m.Answer != "":
		resp.Answer = m.Answer
	default:
		resp.Answer = results[0].Document.Content
	}
	return resp, nil
}

func (m *MockRAGService) GetDocument(ctx context.Context, id int64) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockRAGService) DocumentsByCategory(ctx context.Context, category string) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Document
	for _, doc := range m.docs {
		if doc.Category == category {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockRAGService) DeleteDocument(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *MockRAGService) DocumentCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs), nil
}

func (m *MockRAGService) Categories(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, doc := range m.docs {
		if _, ok := seen[doc.Category]; !ok {
			seen[doc.Category] = struct{}{}
			out = append(out, doc.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MockRAGService) DepartmentCategories(ctx context.Context, department string) ([]string, error) {
	d, ok := domain.LookupDepartment(department)
	if !ok {
		return nil, domain.ErrUnknownDepartment
	}
	return d.Categories, nil
}

func (m *MockRAGService) Stats(ctx context.Context) (*domain.SystemStats, error) {
	count, _ := m.DocumentCount(ctx)
	categories, _ := m.Categories(ctx)
	return &domain.SystemStats{
		Documents:    count,
		Chunks:       count,
		Categories:   categories,
		EncoderModel: "mock",
	}, nil
}
