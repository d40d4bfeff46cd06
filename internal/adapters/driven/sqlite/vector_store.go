package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
	"github.com/custodia-labs/policy-rag/internal/vector"
)

// vectorStore implements driven.VectorStore.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

const insertEmbedding = `
	INSERT INTO embeddings (document_id, chunk_text, chunk_index, embedding)
	VALUES (?, ?, ?, ?)
`

// Save stores one chunk and returns its ID.
func (s *vectorStore) Save(ctx context.Context, chunk *domain.Chunk) (int64, error) {
	res, err := s.store.db.ExecContext(ctx, insertEmbedding,
		chunk.DocumentID, chunk.Text, chunk.Index, vector.EncodeEmbedding(chunk.Embedding))
	if err != nil {
		return 0, fmt.Errorf("inserting embedding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading embedding id: %w", err)
	}
	chunk.ID = id
	return id, nil
}

// SaveBatch stores chunks in one transaction.
func (s *vectorStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertEmbedding)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		res, err := stmt.ExecContext(ctx,
			chunk.DocumentID, chunk.Text, chunk.Index, vector.EncodeEmbedding(chunk.Embedding))
		if err != nil {
			return fmt.Errorf("inserting embedding: %w", err)
		}
		if chunk.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading embedding id: %w", err)
		}
	}

	return tx.Commit()
}

// Search ranks stored chunks by cosine similarity to query. A non-empty
// category restricts the scan to that category's documents.
func (s *vectorStore) Search(ctx context.Context, query []float32, topK int, category string) ([]*domain.Chunk, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = s.store.db.QueryContext(ctx, `
			SELECT id, document_id, chunk_text, chunk_index, embedding
			FROM embeddings ORDER BY id
		`)
	} else {
		rows, err = s.store.db.QueryContext(ctx, `
			SELECT e.id, e.document_id, e.chunk_text, e.chunk_index, e.embedding
			FROM embeddings e JOIN documents d ON d.id = e.document_id
			WHERE d.category = ? ORDER BY e.id
		`, category)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: querying embeddings: %v", domain.ErrSearchFailure, err)
	}
	defer rows.Close()

	var candidates []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &c.Index, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning embedding: %v", domain.ErrSearchFailure, err)
		}
		if c.Embedding, err = vector.DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %v", domain.ErrSearchFailure, c.ID, err)
		}
		candidates = append(candidates, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailure, err)
	}

	return vector.Rank(query, candidates, topK)
}

// DeleteByDocument removes every chunk of a document, reporting whether any existed.
func (s *vectorStore) DeleteByDocument(ctx context.Context, documentID int64) (bool, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID)
	if err != nil {
		return false, fmt.Errorf("deleting embeddings: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Count returns the number of stored chunks.
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}
