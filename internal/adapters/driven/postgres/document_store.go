package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save inserts a document when its ID is unset and updates it otherwise
func (s *DocumentStore) Save(ctx context.Context, doc *domain.Document) (int64, error) {
	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return 0, err
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if doc.ID == 0 {
		query := `
			INSERT INTO documents (title, content, category, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		var id int64
		if err := s.db.QueryRowContext(ctx, query,
			doc.Title, doc.Content, doc.Category, metadataJSON, doc.CreatedAt,
		).Scan(&id); err != nil {
			return 0, err
		}
		doc.ID = id
		return id, nil
	}

	query := `
		UPDATE documents SET title = $2, content = $3, category = $4, metadata = $5
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, doc.ID, doc.Title, doc.Content, doc.Category, metadataJSON)
	if err != nil {
		return 0, err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return 0, domain.ErrNotFound
	}
	return doc.ID, nil
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id int64) (*domain.Document, error) {
	query := `
		SELECT id, title, content, category, metadata, created_at
		FROM documents
		WHERE id = $1
	`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// GetByCategory retrieves a category's documents, most recent first
func (s *DocumentStore) GetByCategory(ctx context.Context, category string) ([]*domain.Document, error) {
	query := `
		SELECT id, title, content, category, metadata, created_at
		FROM documents
		WHERE category = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Delete deletes a document; its embeddings cascade
func (s *DocumentStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Categories returns the distinct categories in sorted order
func (s *DocumentStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM documents ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// Count returns the number of documents
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON []byte

	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&doc.Category,
		&metadataJSON,
		&doc.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, err
		}
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}

	return &doc, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}
