package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
	"github.com/custodia-labs/policy-rag/internal/core/ports/driven"
	"github.com/custodia-labs/policy-rag/internal/vector"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore using PostgreSQL.
// Embeddings are stored as float32 blobs and ranked in process.
type VectorStore struct {
	db *DB
}

// NewVectorStore creates a new VectorStore
func NewVectorStore(db *DB) *VectorStore {
	return &VectorStore{db: db}
}

const insertEmbedding = `
	INSERT INTO embeddings (document_id, chunk_text, chunk_index, embedding)
	VALUES ($1, $2, $3, $4)
	RETURNING id
`

// Save stores one chunk
func (s *VectorStore) Save(ctx context.Context, chunk *domain.Chunk) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, insertEmbedding,
		chunk.DocumentID,
		chunk.Text,
		chunk.Index,
		vector.EncodeEmbedding(chunk.Embedding),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	chunk.ID = id
	return id, nil
}

// SaveBatch saves multiple chunks in a transaction
func (s *VectorStore) SaveBatch(ctx context.Context, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertEmbedding)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if err := stmt.QueryRowContext(ctx,
				chunk.DocumentID,
				chunk.Text,
				chunk.Index,
				vector.EncodeEmbedding(chunk.Embedding),
			).Scan(&chunk.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search ranks stored chunks by cosine similarity to query
func (s *VectorStore) Search(ctx context.Context, query []float32, topK int, category string) ([]*domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.document_id, e.chunk_text, e.chunk_index, e.embedding
		FROM embeddings e
		JOIN documents d ON d.id = e.document_id
		WHERE $1 = '' OR d.category = $1
		ORDER BY e.id
	`, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailure, err)
	}
	defer rows.Close()

	var candidates []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Text, &c.Index, &blob); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailure, err)
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

// DeleteByDocument deletes all chunks of a document
func (s *VectorStore) DeleteByDocument(ctx context.Context, documentID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE document_id = $1`, documentID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of stored chunks
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count)
	return count, err
}
