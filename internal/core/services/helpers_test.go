package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
	"github.com/custodia-labs/policy-rag/internal/runtime"
)

// testEnv wires a RAGService over in-memory mocks
type testEnv struct {
	docs     *mocks.MockDocumentStore
	vectors  *mocks.MockVectorStore
	encoder  *mocks.MockEmbeddingService
	cache    *mocks.MockResponseCache
	services *runtime.Services
	rag      driving.RAGService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, DefaultRAGConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg RAGConfig) *testEnv {
	t.Helper()
	docs := mocks.NewMockDocumentStore()
	vectors := mocks.NewMockVectorStore(docs)
	encoder := mocks.NewMockEmbeddingService()
	cache := mocks.NewMockResponseCache()

	services := runtime.NewServices(domain.NewRuntimeConfig("memory", true))
	services.SetEmbeddingService(encoder, false)

	return &testEnv{
		docs:     docs,
		vectors:  vectors,
		encoder:  encoder,
		cache:    cache,
		services: services,
		rag:      NewRAGService(docs, vectors, services, cache, cfg),
	}
}

func (e *testEnv) add(t *testing.T, title, content, category string) int64 {
	t.Helper()
	id, err := e.rag.AddDocument(context.Background(), domain.AddDocumentRequest{
		Title:    title,
		Content:  content,
		Category: category,
	})
	require.NoError(t, err)
	return id
}

func result(title, category, text string, score float64) domain.SearchResult {
	return domain.SearchResult{
		Document:       &domain.Document{Title: title, Category: category},
		Chunk:          &domain.Chunk{Text: text, Similarity: score},
		RelevanceScore: score,
	}
}
