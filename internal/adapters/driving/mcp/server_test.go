package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driving/mocks"
)

func newSeededRAG(t *testing.T) *mocks.MockRAGService {
	t.Helper()
	rag := mocks.NewMockRAGService()
	docs := []domain.AddDocumentRequest{
		{Title: "Vacaciones", Content: "Los empleados disfrutan de 22 días de vacaciones al año.", Category: "vacaciones"},
		{Title: "Teletrabajo", Content: "Se permite el trabajo remoto dos días por semana.", Category: "trabajo_remoto"},
	}
	for _, d := range docs {
		_, err := rag.AddDocument(context.Background(), d)
		require.NoError(t, err)
	}
	return rag
}

func TestNewServer(t *testing.T) {
	t.Run("nil rag service returns error", func(t *testing.T) {
		server, err := NewServer(nil, "1.0.0")
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRAGService)
	})

	t.Run("valid service creates server", func(t *testing.T) {
		server, err := NewServer(mocks.NewMockRAGService(), "")
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}
