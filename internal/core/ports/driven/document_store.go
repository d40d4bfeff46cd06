package driven

import (
	"context"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// DocumentStore handles policy document persistence (SQLite or PostgreSQL)
type DocumentStore interface {
	// Save inserts the document when ID is 0 and assigns the new ID,
	// otherwise updates the document with that ID. Returns the ID.
	Save(ctx context.Context, doc *domain.Document) (int64, error)

	// Get retrieves a document by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*domain.Document, error)

	// GetByCategory retrieves the documents of a category, most recent first
	GetByCategory(ctx context.Context, category string) ([]*domain.Document, error)

	// Delete deletes a document. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// Categories returns every distinct category, sorted
	Categories(ctx context.Context) ([]string, error)

	// Count returns total document count
	Count(ctx context.Context) (int, error)
}

// VectorStore persists one embedding per chunk and answers similarity
// queries by linear scan.
type VectorStore interface {
	// Save stores a chunk with its embedding and returns its ID
	Save(ctx context.Context, chunk *domain.Chunk) (int64, error)

	// SaveBatch stores the chunks of one document in a single transaction
	SaveBatch(ctx context.Context, chunks []*domain.Chunk) error

	// Search returns the topK chunks most similar to query, best first,
	// with Similarity set. A non-empty category restricts the scan to
	// chunks whose document has that category. Returns
	// domain.ErrDimensionMismatch when a stored embedding has a different
	// length than query.
	Search(ctx context.Context, query []float32, topK int, category string) ([]*domain.Chunk, error)

	// DeleteByDocument removes every chunk of a document and reports
	// whether any existed
	DeleteByDocument(ctx context.Context, documentID int64) (bool, error)

	// Count returns total chunk count
	Count(ctx context.Context) (int, error)
}
