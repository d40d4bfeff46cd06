package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("answers with sources", func(t *testing.T) {
		rag := newSeededRAG(t)
		rag.Answer = "Tienes 22 días."
		server, err := NewServer(rag, "test")
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "vacaciones", Department: "rrhh"})

		require.NoError(t, err)
		assert.Equal(t, "Tienes 22 días.", output.Answer)
		assert.Equal(t, string(domain.AnswerSourceTemplate), output.AnswerSource)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "Vacaciones", output.Sources[0].Title)
		assert.Equal(t, "vacaciones", output.Sources[0].Category)
		assert.True(t, rag.LastAsk.UseGenerator)
		assert.Equal(t, "rrhh", rag.LastAsk.Department)
	})

	t.Run("unknown department is rejected", func(t *testing.T) {
		server, err := NewServer(newSeededRAG(t), "test")
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "vacaciones", Department: "astronomia"})
		assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	})

	t.Run("no matches", func(t *testing.T) {
		server, err := NewServer(newSeededRAG(t), "test")
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "helicóptero"})
		require.NoError(t, err)
		assert.Empty(t, output.Sources)
		assert.Equal(t, string(domain.AnswerSourceNoResults), output.AnswerSource)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns excerpts", func(t *testing.T) {
		server, err := NewServer(newSeededRAG(t), "test")
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "trabajo remoto"})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		assert.Equal(t, "Teletrabajo", output.Results[0].Title)
		assert.Equal(t, 1.0, output.Results[0].Score)
		assert.Contains(t, output.Results[0].Excerpt, "trabajo remoto")
	})

	t.Run("category filter", func(t *testing.T) {
		server, err := NewServer(newSeededRAG(t), "test")
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "días", Category: "vacaciones"})
		require.NoError(t, err)
		require.Equal(t, 1, output.Count)
		assert.Equal(t, "vacaciones", output.Results[0].Category)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		rag := newSeededRAG(t)
		rag.Err = fmt.Errorf("%w: dial tcp 10.0.0.7:5432: connection refused", domain.ErrSearchFailure)
		server, err := NewServer(rag, "test")
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.Error(t, err)
		assert.Equal(t, "search failed", err.Error())
		assert.ErrorIs(t, err, domain.ErrSearchFailure)
	})

	t.Run("hides uncategorised errors", func(t *testing.T) {
		rag := newSeededRAG(t)
		rag.Err = errors.New("pq: password authentication failed for user admin")
		server, err := NewServer(rag, "test")
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})
		require.Error(t, err)
		assert.Equal(t, "internal server error", err.Error())
	})
}

func TestServer_handleListCategories(t *testing.T) {
	ctx := context.Background()
	server, err := NewServer(newSeededRAG(t), "test")
	require.NoError(t, err)

	_, output, err := server.handleListCategories(ctx, nil, CategoriesInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"trabajo_remoto", "vacaciones"}, output.Categories)
	assert.Contains(t, output.Departments, "rrhh")

	_, output, err = server.handleListCategories(ctx, nil, CategoriesInput{Department: "it"})
	require.NoError(t, err)
	assert.Contains(t, output.Categories, "trabajo_remoto")

	_, _, err = server.handleListCategories(ctx, nil, CategoriesInput{Department: "nadie"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestToSources_TruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("palabra ", 100)
	sources := toSources([]domain.SearchResult{
		{Document: &domain.Document{ID: 1}, Chunk: &domain.Chunk{Text: long}, RelevanceScore: 0.5},
		{RelevanceScore: 0.1},
	})

	require.Len(t, sources, 2)
	assert.True(t, strings.HasSuffix(sources[0].Excerpt, "..."))
	assert.Equal(t, excerptLength+3, len([]rune(sources[0].Excerpt)))
	assert.Equal(t, int64(0), sources[1].DocumentID)
}
