package driving

import (
	"context"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// RAGService answers questions against the policy corpus and manages the
// documents it retrieves from.
type RAGService interface {
	// AddDocument chunks, embeds and stores a document, returning its ID.
	// Fails with domain.ErrInvalidInput on empty title, content or category.
	AddDocument(ctx context.Context, req domain.AddDocumentRequest) (int64, error)

	// SearchDocuments returns the chunks most similar to query, best first,
	// each paired with its document.
	SearchDocuments(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// GenerateResponse answers query with the default options.
	GenerateResponse(ctx context.Context, query string, useGenerator bool) (*domain.RAGResponse, error)

	// Ask answers query, optionally restricted to a category and biased
	// towards a department.
	Ask(ctx context.Context, query string, opts domain.AskOptions) (*domain.RAGResponse, error)

	// GetDocument returns one document. domain.ErrNotFound if absent.
	GetDocument(ctx context.Context, id int64) (*domain.Document, error)

	// DocumentsByCategory lists a category's documents, most recent first.
	DocumentsByCategory(ctx context.Context, category string) ([]*domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	// domain.ErrNotFound if absent.
	DeleteDocument(ctx context.Context, id int64) error

	// DocumentCount returns the number of stored documents.
	DocumentCount(ctx context.Context) (int, error)

	// Categories returns the distinct document categories.
	Categories(ctx context.Context) ([]string, error)

	// DepartmentCategories returns the categories a department considers
	// its own. Fails with domain.ErrInvalidQuery for unknown departments.
	DepartmentCategories(ctx context.Context, department string) ([]string, error)

	// Stats summarises corpus size and usage counters.
	Stats(ctx context.Context) (*domain.SystemStats, error)
}
