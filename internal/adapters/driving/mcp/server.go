package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/policy-rag/internal/core/ports/driving"
)

// Server is the MCP server for policy-rag.
type Server struct {
	rag    driving.RAGService
	server *mcp.Server
}

// NewServer creates a new MCP server answering from rag.
func NewServer(rag driving.RAGService, version string) (*Server, error) {
	if rag == nil {
		return nil, ErrMissingRAGService
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		rag: rag,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "policy-rag",
			Version: version,
		}, nil),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
