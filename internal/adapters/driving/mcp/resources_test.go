package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected int64
	}{
		{name: "valid document URI", uri: "policy://documents/12", expected: 12},
		{name: "non-numeric id", uri: "policy://documents/abc", expected: 0},
		{name: "invalid prefix", uri: "file://documents/12", expected: 0},
		{name: "empty URI", uri: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDocumentID(tt.uri))
		})
	}
}

func TestServer_handleDocumentResource(t *testing.T) {
	ctx := context.Background()
	server, err := NewServer(newSeededRAG(t), "test")
	require.NoError(t, err)

	t.Run("returns markdown content", func(t *testing.T) {
		req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "policy://documents/1"}}
		result, err := server.handleDocumentResource(ctx, req)

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "text/markdown", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "# Vacaciones")
		assert.Contains(t, result.Contents[0].Text, "22 días")
	})

	t.Run("unknown document", func(t *testing.T) {
		req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "policy://documents/99"}}
		_, err := server.handleDocumentResource(ctx, req)
		assert.Error(t, err)
	})
}

func TestServer_handleCategoriesResource(t *testing.T) {
	server, err := NewServer(newSeededRAG(t), "test")
	require.NoError(t, err)

	req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "policy://categories"}}
	result, err := server.handleCategoriesResource(context.Background(), req)

	require.NoError(t, err)
	assert.JSONEq(t, `["trabajo_remoto","vacaciones"]`, result.Contents[0].Text)
}
