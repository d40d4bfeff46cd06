package services

import (
	"strings"

	"github.com/custodia-labs/policy-rag/internal/core/domain"
)

// FilterByDepartment biases results towards a department.
//
// A result whose document category belongs to the department is kept as is.
// A result from another category is kept with its score multiplied by
// domain.KeywordPenalty when its chunk text or document title mentions one
// of the department keywords, and dropped otherwise. Surviving results keep
// their input order; penalised results are not re-sorted, so the output may
// not be in descending score order.
//
// An empty or "general" department returns results unchanged.
func FilterByDepartment(results []domain.SearchResult, department string) ([]domain.SearchResult, error) {
	if domain.IsGeneralDepartment(department) {
		return results, nil
	}
	dept, ok := domain.LookupDepartment(department)
	if !ok {
		return nil, domain.ErrUnknownDepartment
	}

	filtered := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Document != nil && dept.HasCategory(r.Document.Category) {
			filtered = append(filtered, r)
			continue
		}
		if dept.MatchesText(searchableText(r)) {
			r.RelevanceScore *= domain.KeywordPenalty
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func searchableText(r domain.SearchResult) string {
	var b strings.Builder
	if r.Chunk != nil {
		b.WriteString(r.Chunk.Text)
	}
	b.WriteByte(' ')
	if r.Document != nil {
		b.WriteString(r.Document.Title)
	}
	return strings.ToLower(b.String())
}
