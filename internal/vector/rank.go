package vector

import (
	"sort"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// Rank scores every candidate chunk against query, stable-sorts them by
// similarity descending and returns at most topK of them with Similarity
// set. Ties keep the order in which candidates were supplied. The input
// slice is not modified.
func Rank(query []float32, candidates []*domain.Chunk, topK int) ([]*domain.Chunk, error) {
	if topK <= 0 || len(candidates) == 0 {
		return []*domain.Chunk{}, nil
	}

	qnorm := Norm(query)
	scored := make([]*domain.Chunk, 0, len(candidates))
	for _, c := range candidates {
		sim, err := similarityWithNorm(query, qnorm, c.Embedding)
		if err != nil {
			return nil, err
		}
		out := *c
		out.Similarity = sim
		scored = append(scored, &out)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// similarityWithNorm is CosineSimilarity with the query norm precomputed.
func similarityWithNorm(query []float32, qnorm float64, stored []float32) (float64, error) {
	if len(query) != len(stored) {
		return CosineSimilarity(query, stored)
	}
	snorm := Norm(stored)
	if qnorm == 0 || snorm == 0 {
		return 0, nil
	}
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(stored[i])
	}
	return dot / (qnorm * snorm), nil
}
